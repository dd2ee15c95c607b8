package credentials

// kvValue maps the rendering of a JS null or undefined, which is what a KV
// lookup of an absent key yields through syscall/js, to a missing value.
func kvValue(v string) string {
	switch v {
	case "<null>", "<undefined>":
		return ""
	}
	return v
}
