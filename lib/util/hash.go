package util

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashString hashes a routing key with a seed using FNV-1a.
// Same key and seed always give the same hash, which is what keeps all
// commands for one key on the same sender.
func HashString(s string, seed uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed

	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}

	return hash
}

// Bucket maps a key to one of n buckets
func Bucket(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(HashString(key, 0) % uint64(n))
}
