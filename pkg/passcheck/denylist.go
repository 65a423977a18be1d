package passcheck

// commonPasswords is a fixed denylist of frequently compromised passwords.
// Matching is done against the lowercased candidate.
var commonPasswords = map[string]bool{
	"password":    true,
	"password1":   true,
	"password12":  true,
	"password123": true,
	"password!":   true,
	"passw0rd":    true,
	"1234":        true,
	"12345":       true,
	"123456":      true,
	"1234567":     true,
	"12345678":    true,
	"123456789":   true,
	"1234567890":  true,
	"12341234":    true,
	"123123":      true,
	"111111":      true,
	"000000":      true,
	"654321":      true,
	"987654321":   true,
	"qwerty":      true,
	"qwerty1":     true,
	"qwerty12":    true,
	"qwerty123":   true,
	"qwertyuiop":  true,
	"asdfghjkl":   true,
	"zxcvbnm":     true,
	"1q2w3e4r":    true,
	"1qaz2wsx":    true,
	"zaq12wsx":    true,
	"qazwsx":      true,
	"abc123":      true,
	"abcd1234":    true,
	"abcdef":      true,
	"a1b2c3":      true,
	"123qwe":      true,
	"qwe123":      true,
	"letmein":     true,
	"welcome":     true,
	"welcome1":    true,
	"monkey":      true,
	"dragon":      true,
	"sunshine":    true,
	"iloveyou":    true,
	"princess":    true,
	"football":    true,
	"baseball":    true,
	"superman":    true,
	"batman":      true,
	"trustno1":    true,
	"admin":       true,
	"admin123":    true,
	"root":        true,
	"toor":        true,
	"guest":       true,
	"test":        true,
	"testing":     true,
	"master":      true,
	"secret":      true,
	"login":       true,
	"senha":       true,
	"senha123":    true,
}
