package sqlitestore

const (
	MemoryDBBaseDir = ":memory:"
	DefaultTable    = "variables"
)

type Config struct {
	BaseDir    string `json:"baseDir"`
	DBFileName string `json:"dbFileName"`
	Table      string `json:"table"`
}
