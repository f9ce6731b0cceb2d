package core

// NextIdentifier returns one more than the largest of keys, or 0 when keys is empty.
func NextIdentifier(keys []int) int {
	if len(keys) == 0 {
		return 0
	}
	max := keys[0]
	for _, k := range keys[1:] {
		if k > max {
			max = k
		}
	}
	return max + 1
}
