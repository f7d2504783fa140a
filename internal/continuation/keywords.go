package continuation

// structureOpeners maps a compound-statement opener keyword to the closer
// keyword that must appear before the structure is balanced.
var structureOpeners = map[string]string{
	"if":    "fi",
	"for":   "done",
	"while": "done",
	"until": "done",
	"case":  "esac",
}

// conditionOpeners are openers whose following token is itself a command
// (the condition of the compound statement), so command-start position is
// preserved across them. "for" and "case" are followed by a plain word
// (loop variable, subject) instead.
var conditionOpeners = map[string]bool{
	"if":    true,
	"while": true,
	"until": true,
}

// linkingKeywords reintroduce command-start position without opening or
// closing anything: the token after them begins a new command.
var linkingKeywords = map[string]bool{
	"then": true,
	"do":   true,
	"else": true,
	"elif": true,
	"{":    true,
}
