package httpcache

import "os"

// openIfExists opens path for reading, returning (nil, nil) if it does not
// exist rather than an error — the cache-miss case is not exceptional.
func openIfExists(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}
