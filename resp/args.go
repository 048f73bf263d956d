package resp

import (
	"errors"
	"strings"
)

var ErrUnbalancedQuotes = errors.New("unbalanced quotes")

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexDigitToInt(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\v' || c == '\f'
}

// SplitArgs splits a line into arguments the way redis-cli does.
//
// Double quoted arguments understand \n \r \t \b \a \xHH and escape any
// other character with a backslash. Single quoted arguments only escape \'.
// A closing quote must be followed by a space or the end of the line.
// A blank line yields a nil slice.
func SplitArgs(line string) ([]string, error) {
	var args []string
	i := 0
	for {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			return args, nil
		}

		var (
			current strings.Builder
			inDq    bool
			inSq    bool
			done    bool
		)
		for !done {
			if i >= len(line) {
				if inDq || inSq {
					return nil, ErrUnbalancedQuotes
				}
				break
			}
			c := line[i]
			switch {
			case inDq:
				if c == '\\' && i+3 < len(line) && line[i+1] == 'x' && isHexDigit(line[i+2]) && isHexDigit(line[i+3]) {
					current.WriteByte(hexDigitToInt(line[i+2])*16 + hexDigitToInt(line[i+3]))
					i += 3
				} else if c == '\\' && i+1 < len(line) {
					i++
					switch line[i] {
					case 'n':
						current.WriteByte('\n')
					case 'r':
						current.WriteByte('\r')
					case 't':
						current.WriteByte('\t')
					case 'b':
						current.WriteByte('\b')
					case 'a':
						current.WriteByte('\a')
					default:
						current.WriteByte(line[i])
					}
				} else if c == '"' {
					if i+1 < len(line) && !isSpace(line[i+1]) {
						return nil, ErrUnbalancedQuotes
					}
					done = true
				} else {
					current.WriteByte(c)
				}
			case inSq:
				if c == '\\' && i+1 < len(line) && line[i+1] == '\'' {
					i++
					current.WriteByte('\'')
				} else if c == '\'' {
					if i+1 < len(line) && !isSpace(line[i+1]) {
						return nil, ErrUnbalancedQuotes
					}
					done = true
				} else {
					current.WriteByte(c)
				}
			default:
				switch {
				case isSpace(c):
					done = true
				case c == '"':
					inDq = true
				case c == '\'':
					inSq = true
				default:
					current.WriteByte(c)
				}
			}
			if i < len(line) {
				i++
			}
		}
		args = append(args, current.String())
	}
}
