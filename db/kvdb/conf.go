package kvdb

type Conf struct {
	Type string `json:"type" yaml:"type"` // redis, memory
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	PW   string `json:"pw" yaml:"pw"`
	DB   int    `json:"db" yaml:"db"` // optional db number e.g. redis
}
