package protocol

import "fmt"

func HzToString(hz int) string {
	return fmt.Sprintf("%d Hz", hz)
}

// HexString renders b as space separated hex pairs for debug logging.
func HexString(b []byte) string {
	return fmt.Sprintf("% X", b)
}
