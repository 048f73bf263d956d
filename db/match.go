package db

// maxGlobNesting bounds the recursion of '*' so a hostile pattern cannot
// exhaust the stack.
const maxGlobNesting = 1000

// globMatch reports whether str matches a Redis style glob pattern:
// '*', '?', '[abc]', '[^abc]', '[a-z]' and '\' escapes. There is no path
// separator, '*' and '?' match any byte including '/'. A malformed pattern
// never fails, an unterminated class simply ends at the end of the pattern.
func globMatch(pattern, str string) bool {
	skipLonger := false
	return globMatchAt(pattern, str, &skipLonger, 0)
}

// skipLonger is set once a '*' has tried every suffix of str without a match.
// Any enclosing '*' would only retry shorter suffixes, so it gives up too.
func globMatchAt(pattern, str string, skipLonger *bool, nesting int) bool {
	if nesting > maxGlobNesting {
		return false
	}

	for len(pattern) > 0 && len(str) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 1 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for len(str) > 0 {
				if globMatchAt(pattern[1:], str, skipLonger, nesting+1) {
					return true
				}
				if *skipLonger {
					return false
				}
				str = str[1:]
			}
			*skipLonger = true
			return false
		case '?':
			pattern = pattern[1:]
			str = str[1:]
		case '[':
			pattern = pattern[1:]
			not := len(pattern) > 0 && pattern[0] == '^'
			if not {
				pattern = pattern[1:]
			}
			match := false
			for len(pattern) > 0 && pattern[0] != ']' {
				switch {
				case pattern[0] == '\\' && len(pattern) >= 2:
					pattern = pattern[1:]
					if pattern[0] == str[0] {
						match = true
					}
				case len(pattern) >= 3 && pattern[1] == '-':
					lo, hi := pattern[0], pattern[2]
					if lo > hi {
						lo, hi = hi, lo
					}
					if str[0] >= lo && str[0] <= hi {
						match = true
					}
					pattern = pattern[2:]
				case pattern[0] == str[0]:
					match = true
				}
				pattern = pattern[1:]
			}
			if len(pattern) > 0 {
				// closing ']'
				pattern = pattern[1:]
			}
			if not {
				match = !match
			}
			if !match {
				return false
			}
			str = str[1:]
		case '\\':
			if len(pattern) >= 2 {
				pattern = pattern[1:]
			}
			fallthrough
		default:
			if pattern[0] != str[0] {
				return false
			}
			pattern = pattern[1:]
			str = str[1:]
		}

		if len(str) == 0 {
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			break
		}
	}
	return len(pattern) == 0 && len(str) == 0
}
