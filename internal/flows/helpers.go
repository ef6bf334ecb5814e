package flows

import (
	"fmt"
	"strconv"
)

func wrapBackend(sentinel, err error) error {
	if sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
