package restore

import "strings"

// lookupValue walks a dotted path through nested maps.
//
// Shadow documents are partial and loosely typed, so every accessor
// tolerates missing keys and wrong shapes by returning ok=false.
func lookupValue(doc map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// lookupString returns the string at path, or "" when absent.
func lookupString(doc map[string]interface{}, path string) (string, bool) {
	value, ok := lookupValue(doc, path)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// lookupBool returns the bool at path. Numeric truthiness is accepted
// because some firmware versions report 0/1 for flags.
func lookupBool(doc map[string]interface{}, path string) (bool, bool) {
	value, ok := lookupValue(doc, path)
	if !ok {
		return false, false
	}
	switch v := value.(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	default:
		return false, false
	}
}

// lookupInt returns the integer at path. JSON numbers decode as
// float64, so truncate.
func lookupInt(doc map[string]interface{}, path string) (int, bool) {
	value, ok := lookupValue(doc, path)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
