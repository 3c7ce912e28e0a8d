//go:build !unix

package audiocore

func lockMemory(...[]byte) [][]byte { return nil }

func unlockMemory([][]byte) {}

func float32Bytes([]float32) []byte { return nil }
