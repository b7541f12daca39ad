package table

import (
	"fmt"
	"sort"
	"strings"
)

// Query selects rows. Equal matches exact values and may name the id.
// Contains matches a case-insensitive substring of Text or JSON fields.
// OrderBy names fields to sort by, a leading '-' sorting descending; rows
// are ordered by id when it is empty. A zero Limit means no limit.
type Query struct {
	Equal    Row
	Contains map[string]string
	OrderBy  []string
	Limit    int
	Offset   int
}

const likeEscape = `\`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where builds the WHERE clause of q. Keys are sorted so the statement text
// is deterministic.
func (t *Table) where(q Query) (string, []any, error) {
	if err := validateKeys(q.Equal, t.types, false); err != nil {
		return "", nil, err
	}
	if err := validateKeys(q.Contains, t.types, false); err != nil {
		return "", nil, err
	}

	var (
		conds []string
		args  []any
	)

	for _, k := range sortedKeys(q.Equal) {
		v, err := encode(k, t.types[k], q.Equal[k])
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, quote(k)+" = ?")
		args = append(args, v)
	}

	for _, k := range sortedKeys(q.Contains) {
		if typ := t.types[k]; typ != Text && typ != JSON {
			return "", nil, fmt.Errorf("field %s: substring match needs text, have %s", k, typ)
		}
		conds = append(conds, quote(k)+" LIKE ? ESCAPE '"+likeEscape+"'")
		needle := q.Contains[k]
		if t.types[k] == JSON {
			needle = jsonNeedle(needle)
		}
		args = append(args, "%"+likeEscaper.Replace(needle)+"%")
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (t *Table) orderBy(fields []string) (string, error) {
	if len(fields) == 0 {
		return " ORDER BY " + quote(IDField), nil
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		dir := "ASC"
		if strings.HasPrefix(f, "-") {
			dir = "DESC"
			f = f[1:]
		}
		if _, ok := t.types[f]; !ok {
			return "", &KeysValidationError{Unexpected: []string{f}}
		}
		terms = append(terms, quote(f)+" "+dir)
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
