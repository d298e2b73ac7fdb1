package event

// Code identifies a physical key on the simulated keyboard.
type Code uint16

const (
	CodeUnknown Code = iota
	CodeA
	CodeB
	CodeC
	CodeD
	CodeE
	CodeF
	CodeG
	CodeH
	CodeI
	CodeJ
	CodeK
	CodeL
	CodeM
	CodeN
	CodeO
	CodeP
	CodeQ
	CodeR
	CodeS
	CodeT
	CodeU
	CodeV
	CodeW
	CodeX
	CodeY
	CodeZ
	Code0
	Code1
	Code2
	Code3
	Code4
	Code5
	Code6
	Code7
	Code8
	Code9
	CodeSpace
	CodeEnter
	CodeTab
	CodeBackspace
	CodeGrave
	CodeMinus
	CodeEquals
	CodeLeftBracket
	CodeRightBracket
	CodeBackslash
	CodeSemicolon
	CodeApostrophe
	CodeComma
	CodePeriod
	CodeSlash
	CodeShift
)

var codeNames = map[Code]string{
	CodeUnknown:      "unknown",
	CodeA:            "a",
	CodeB:            "b",
	CodeC:            "c",
	CodeD:            "d",
	CodeE:            "e",
	CodeF:            "f",
	CodeG:            "g",
	CodeH:            "h",
	CodeI:            "i",
	CodeJ:            "j",
	CodeK:            "k",
	CodeL:            "l",
	CodeM:            "m",
	CodeN:            "n",
	CodeO:            "o",
	CodeP:            "p",
	CodeQ:            "q",
	CodeR:            "r",
	CodeS:            "s",
	CodeT:            "t",
	CodeU:            "u",
	CodeV:            "v",
	CodeW:            "w",
	CodeX:            "x",
	CodeY:            "y",
	CodeZ:            "z",
	Code0:            "0",
	Code1:            "1",
	Code2:            "2",
	Code3:            "3",
	Code4:            "4",
	Code5:            "5",
	Code6:            "6",
	Code7:            "7",
	Code8:            "8",
	Code9:            "9",
	CodeSpace:        "space",
	CodeEnter:        "enter",
	CodeTab:          "tab",
	CodeBackspace:    "backspace",
	CodeGrave:        "grave",
	CodeMinus:        "minus",
	CodeEquals:       "equals",
	CodeLeftBracket:  "left_bracket",
	CodeRightBracket: "right_bracket",
	CodeBackslash:    "backslash",
	CodeSemicolon:    "semicolon",
	CodeApostrophe:   "apostrophe",
	CodeComma:        "comma",
	CodePeriod:       "period",
	CodeSlash:        "slash",
	CodeShift:        "shift",
}

// codesByName is the reverse of codeNames, built once at init.
var codesByName = func() map[string]Code {
	m := make(map[string]Code, len(codeNames))
	for c, n := range codeNames {
		m[n] = c
	}
	return m
}()

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "unknown"
}

// CodeByName resolves a script-level key name ("enter", "a", "space") to its
// code. Returns false for names outside the simulated keyboard.
func CodeByName(name string) (Code, bool) {
	c, ok := codesByName[name]
	if !ok || c == CodeUnknown {
		return CodeUnknown, false
	}
	return c, true
}
