package common

func PanicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}

// CeilDiv returns ceil(a / b) for positive ints.
func CeilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
