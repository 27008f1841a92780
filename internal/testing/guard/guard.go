package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TERRABOOK_TEST_MODE") == "" {
			_ = os.Setenv("TERRABOOK_TEST_MODE", "1")
		}
	})
}
