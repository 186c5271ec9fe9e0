package fieldscan

// ScanSELinux implements the SELinux/AVC dialect described in spec.md §4.3.
// Only the first field of the body gets special handling: the text between
// the start of the body and the last space before the first '=' is a
// free-form dialect prefix rather than part of the key. Depending on its
// shape, synthetic fields are inserted:
//
//   - "avc: STATUS { OP } for KEY=…"   -> _avc_status=STATUS, _avc_op=OP
//   - "policy STATUS KEY=…"            -> _policy_status=STATUS
//   - "PREFIX KEY=…" / "netlabel: KEY=…" -> _sel_prefix=PREFIX
//
// The remainder of the body (including the first field's own KEY=VALUE)
// parses exactly like the default dialect.
func ScanSELinux(body []byte, dest *FieldMap) bool {
	return scan(body, dest, func(keyStart, keyEnd, valStart, valEnd int, quoted bool) bool {
		handleSELinuxIntro(body, keyStart, keyEnd, valStart, valEnd, quoted, dest)
		return true
	})
}

func handleSELinuxIntro(body []byte, keyStart, keyEnd, valStart, valEnd int, quoted bool, dest *FieldMap) {
	lastSpace := -1
	for i := keyEnd - 1; i >= keyStart; i-- {
		if body[i] == ' ' {
			lastSpace = i
			break
		}
	}
	if lastSpace == -1 {
		// No embedded prefix: this is a normal field.
		key := string(body[keyStart:keyEnd])
		dest.set(key, Span{Start: uint32(valStart), Len: uint32(valEnd - valStart), Quoted: quoted})
		return
	}

	// The real key is the text after the last space; record its value
	// like any other field.
	actualKeyStart := lastSpace + 1
	key := string(body[actualKeyStart:keyEnd])
	dest.set(key, Span{Start: uint32(valStart), Len: uint32(valEnd - valStart), Quoted: quoted})

	prefixStart, prefixEnd := keyStart, lastSpace
	tokens := splitWords(body, prefixStart, prefixEnd)

	switch {
	case len(tokens) > 0 && string(body[tokens[0].Start:tokens[0].Start+tokens[0].Len]) == "avc:":
		handleAVCIntro(body, tokens, dest)
	case len(tokens) == 2 && string(body[tokens[0].Start:tokens[0].Start+tokens[0].Len]) == "policy":
		dest.set("_policy_status", tokens[1])
	default:
		dest.set("_sel_prefix", Span{Start: uint32(prefixStart), Len: uint32(prefixEnd - prefixStart)})
	}
}

func handleAVCIntro(body []byte, tokens []Span, dest *FieldMap) {
	if len(tokens) > 1 {
		dest.set("_avc_status", tokens[1])
	}
	braceOpen, braceClose := -1, -1
	for i, t := range tokens {
		word := string(body[t.Start : t.Start+t.Len])
		if word == "{" && braceOpen == -1 {
			braceOpen = i
		}
		if word == "}" && braceOpen != -1 {
			braceClose = i
			break
		}
	}
	if braceOpen == -1 || braceClose == -1 {
		return
	}
	opStart := int(tokens[braceOpen].Start + tokens[braceOpen].Len)
	opEnd := int(tokens[braceClose].Start)
	for opStart < opEnd && body[opStart] == ' ' {
		opStart++
	}
	for opEnd > opStart && body[opEnd-1] == ' ' {
		opEnd--
	}
	dest.set("_avc_op", Span{Start: uint32(opStart), Len: uint32(opEnd - opStart)})
}

// splitWords returns the whitespace-delimited word spans within
// body[start:end].
func splitWords(body []byte, start, end int) []Span {
	var words []Span
	i := start
	for i < end {
		for i < end && body[i] == ' ' {
			i++
		}
		if i >= end {
			break
		}
		wordStart := i
		for i < end && body[i] != ' ' {
			i++
		}
		words = append(words, Span{Start: uint32(wordStart), Len: uint32(i - wordStart)})
	}
	return words
}

// HandlesSELinuxType reports whether record type t should be parsed with
// the SELinux dialect: user AVC (1107), or SELinux kernel events in
// 1400..1450 inclusive.
//
// The original C++ predicate (`recType == 1107 || (recType >= 1400 ||
// recType <= 1450)`) is tautological — the second half of the disjunction
// is true for every int. spec.md's REDESIGN FLAGS correct the evident
// intent to an inclusive range, which is what this implements.
func HandlesSELinuxType(t uint32) bool {
	return t == 1107 || (t >= 1400 && t <= 1450)
}
