package kernel

// Fill sets every byte of target to value. Instead of a byte loop it uses
// log2(len(target)) copy calls, which is faster on page-sized buffers.
func Fill(target []byte, value byte) {
	if len(target) == 0 {
		return
	}

	target[0] = value
	for index := 1; index < len(target); index *= 2 {
		copy(target[index:], target[:index])
	}
}
