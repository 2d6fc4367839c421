package value

import "bytes"

// order defines the total cross-variant order required by §3.1:
// None < Null < Bool < Int/Float/Decimal < String < Bytes < Datetime <
// Duration < Uuid < Array < Object < Geometry < RecordID < Range < Edges <
// Table < Regex < Closure < Future.
func order(k Kind) int {
	switch k {
	case KindNone:
		return 0
	case KindNull:
		return 1
	case KindBool:
		return 2
	case KindInt, KindFloat, KindDecimal:
		return 3
	case KindString:
		return 4
	case KindBytes:
		return 5
	case KindDatetime:
		return 6
	case KindDuration:
		return 7
	case KindUUID:
		return 8
	case KindArray:
		return 9
	case KindObject:
		return 10
	case KindGeometry:
		return 11
	case KindRecordID:
		return 12
	case KindRange:
		return 13
	case KindEdges:
		return 14
	case KindTable:
		return 15
	case KindRegex:
		return 16
	case KindClosure:
		return 17
	case KindFuture:
		return 18
	default:
		return 99
	}
}

// numeric returns a) whether v is one of the numeric kinds and b) its
// float64 representation, used so Int/Float/Decimal compare on a shared
// numeric axis rather than only within their own exact kind.
func numeric(v Value) (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	case KindDecimal:
		f, err := parseDecimalFloat(v.S)
		return f, err == nil
	default:
		return 0, false
	}
}

// Compare gives a total order: negative if a < b, zero if equal, positive
// if a > b. Equality and ordering are total within a variant and follow
// the documented cross-variant order (§3.1).
func Compare(a, b Value) int {
	if na, ok := numeric(a); ok {
		if nb, ok := numeric(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}

	oa, ob := order(a.Kind), order(b.Kind)
	if oa != ob {
		return oa - ob
	}

	switch a.Kind {
	case KindNone, KindNull:
		return 0
	case KindBool:
		return boolCompare(a.B, b.B)
	case KindString, KindRegex, KindTable:
		return stringsCompare(a.S, b.S)
	case KindBytes:
		return bytes.Compare(a.Bt, b.Bt)
	case KindDatetime:
		switch {
		case a.T.Before(b.T):
			return -1
		case a.T.After(b.T):
			return 1
		default:
			return 0
		}
	case KindDuration:
		return int(a.D - b.D)
	case KindUUID:
		return bytes.Compare(a.U[:], b.U[:])
	case KindArray:
		return compareArrays(a.Arr, b.Arr)
	case KindObject:
		return compareObjects(a.Obj, b.Obj)
	case KindRecordID:
		if a.RID.Table != b.RID.Table {
			return stringsCompare(a.RID.Table, b.RID.Table)
		}
		return Compare(a.RID.Key, b.RID.Key)
	default:
		return 0
	}
}

// Equal reports whether Compare(a, b) == 0.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func stringsCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareArrays(a, b []Value) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareObjects(a, b *Object) int {
	ak, bk := a.Keys(), b.Keys()
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := stringsCompare(ak[i], bk[i]); c != 0 {
			return c
		}
		av, _ := a.Get(ak[i])
		bv, _ := b.Get(bk[i])
		if c := Compare(av, bv); c != 0 {
			return c
		}
	}
	return len(ak) - len(bk)
}

// parseDecimalFloat parses the text form of a Decimal for comparison
// purposes; full fixed-point arithmetic is out of scope for this engine,
// matching the spec's treatment of Decimal as "Number(Decimal)" without
// further precision requirements.
func parseDecimalFloat(s string) (float64, error) {
	var f float64
	var sign float64 = 1
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		if s[i] == '-' {
			sign = -1
		}
		i++
	}
	seenDigit := false
	frac := 0.0
	fracDiv := 1.0
	inFrac := false
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.':
			inFrac = true
		case c >= '0' && c <= '9':
			seenDigit = true
			d := float64(c - '0')
			if inFrac {
				fracDiv *= 10
				frac += d / fracDiv
			} else {
				f = f*10 + d
			}
		default:
			return 0, errInvalidDecimal
		}
	}
	if !seenDigit {
		return 0, errInvalidDecimal
	}
	return sign * (f + frac), nil
}

var errInvalidDecimal = &decimalError{}

type decimalError struct{}

func (*decimalError) Error() string { return "value: invalid decimal literal" }
