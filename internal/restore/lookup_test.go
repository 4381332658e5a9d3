package restore

import "testing"

func TestLookupValue(t *testing.T) {
	doc := map[string]interface{}{
		"deviceInfo": map[string]interface{}{"f": "2.0.1"},
		"color": map[string]interface{}{
			"enabled": true,
			"i":       float64(32767),
		},
		"flags": map[string]interface{}{"numeric": float64(1)},
		"plain": "value",
	}

	if s, ok := lookupString(doc, "deviceInfo.f"); !ok || s != "2.0.1" {
		t.Errorf("lookupString = %q, %v", s, ok)
	}
	if b, ok := lookupBool(doc, "color.enabled"); !ok || !b {
		t.Errorf("lookupBool = %v, %v", b, ok)
	}
	if b, ok := lookupBool(doc, "flags.numeric"); !ok || !b {
		t.Errorf("numeric truthiness = %v, %v", b, ok)
	}
	if i, ok := lookupInt(doc, "color.i"); !ok || i != 32767 {
		t.Errorf("lookupInt = %d, %v", i, ok)
	}

	if _, ok := lookupValue(doc, "color.missing"); ok {
		t.Error("missing leaf must not resolve")
	}
	if _, ok := lookupValue(doc, "missing.nested.path"); ok {
		t.Error("missing branch must not resolve")
	}
	if _, ok := lookupValue(doc, "plain.deeper"); ok {
		t.Error("descending through a scalar must not resolve")
	}
	if _, ok := lookupInt(doc, "deviceInfo.f"); ok {
		t.Error("string must not read as int")
	}
}
