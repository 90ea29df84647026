package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("GRIDOPS_TEST_MODE") == "" {
			_ = os.Setenv("GRIDOPS_TEST_MODE", "1")
		}
	})
}
