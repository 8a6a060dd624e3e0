package dbi

type arrayDriver struct {
	rs *ResultSet
}

func (d *arrayDriver) Kind() Kind { return Array }

func (d *arrayDriver) Fetch(n Count) (any, error) {
	return d.fetch(n)
}

func (d *arrayDriver) fetch(n Count) ([]Row, error) {
	raw, err := d.rs.RawFetch(n)
	if err != nil {
		return nil, err
	}
	return convertRows(d.rs, raw)
}

func (d *arrayDriver) fetchOne() (any, error) {
	rows, err := d.fetch(1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}
