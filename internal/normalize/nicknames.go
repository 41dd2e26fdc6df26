package normalize

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// defaultNicknames maps common short forms to their formal given name. Both
// directions are considered during scoring. Deployments extend or override
// this table via a YAML file (resolution.nickname_file).
var defaultNicknames = map[string]string{
	"abe":   "abraham",
	"al":    "albert",
	"alex":  "alexander",
	"andy":  "andrew",
	"ben":   "benjamin",
	"bill":  "william",
	"bob":   "robert",
	"cathy": "catherine",
	"chris": "christopher",
	"chuck": "charles",
	"dan":   "daniel",
	"dave":  "david",
	"dick":  "richard",
	"ed":    "edward",
	"frank": "francis",
	"fred":  "frederick",
	"greg":  "gregory",
	"hank":  "henry",
	"jake":  "jacob",
	"jim":   "james",
	"joe":   "joseph",
	"john":  "jonathan",
	"ken":   "kenneth",
	"larry": "lawrence",
	"liz":   "elizabeth",
	"matt":  "matthew",
	"mike":  "michael",
	"nick":  "nicholas",
	"pat":   "patrick",
	"pete":  "peter",
	"rick":  "richard",
	"rob":   "robert",
	"ron":   "ronald",
	"sam":   "samuel",
	"steve": "steven",
	"ted":   "theodore",
	"tom":   "thomas",
	"tony":  "anthony",
	"will":  "william",
}

// NicknameTable answers whether two given-name tokens are known equivalents.
type NicknameTable struct {
	formal map[string]string
}

// NewNicknameTable returns a table seeded with the built-in defaults.
func NewNicknameTable() *NicknameTable {
	formal := make(map[string]string, len(defaultNicknames))
	for nick, full := range defaultNicknames {
		formal[nick] = full
	}
	return &NicknameTable{formal: formal}
}

// LoadNicknameTable merges a YAML file of nickname: formal pairs over the
// defaults. An empty path returns the default table.
func LoadNicknameTable(path string) (*NicknameTable, error) {
	t := NewNicknameTable()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read nickname file %s", path)
	}

	var extra map[string]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, eris.Wrap(err, "normalize: parse nickname file")
	}
	for nick, full := range extra {
		t.formal[Name(nick)] = Name(full)
	}
	return t, nil
}

// Equivalent reports whether a and b are the same given name modulo a known
// nickname. Inputs are single normalized tokens.
func (t *NicknameTable) Equivalent(a, b string) bool {
	if a == b {
		return true
	}
	return t.canonical(a) == t.canonical(b)
}

func (t *NicknameTable) canonical(token string) string {
	if full, ok := t.formal[token]; ok {
		return full
	}
	return token
}
