// Package jsonvalue provides an ordered, depth-bounded JSON value used for request and
// response bodies. Object members keep their document order.
package jsonvalue

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// MaxDepth bounds container nesting accepted by Parse.
const MaxDepth = 64

var (
	ErrInvalid = errors.New("invalid JSON")
	ErrTooDeep = errors.New("JSON nesting too deep")
)

// Kind is the variant tag of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Member is one key/value pair of an object.
type Member struct {
	Key   string
	Value *Value
}

// Value is a tagged JSON value.
type Value struct {
	Kind    Kind
	Bool    bool
	Num     float64
	Str     string
	Items   []*Value
	Members []Member
}

// Parse decodes text into a Value. Duplicate object keys keep the position of their
// first occurrence and the value of their last.
func Parse(text string) (*Value, error) {
	if strings.TrimSpace(text) == "" || !gjson.Valid(text) {
		return nil, ErrInvalid
	}
	return build(gjson.Parse(text), 0)
}

func build(r gjson.Result, depth int) (*Value, error) {
	switch {
	case r.IsObject():
		if depth >= MaxDepth {
			return nil, fmt.Errorf("%w: more than %d levels", ErrTooDeep, MaxDepth)
		}
		v := &Value{Kind: Object}
		seen := make(map[string]int)
		var err error
		r.ForEach(func(key, val gjson.Result) bool {
			var child *Value
			child, err = build(val, depth+1)
			if err != nil {
				return false
			}
			if i, ok := seen[key.Str]; ok {
				v.Members[i].Value = child
				return true
			}
			seen[key.Str] = len(v.Members)
			v.Members = append(v.Members, Member{Key: key.Str, Value: child})
			return true
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	case r.IsArray():
		if depth >= MaxDepth {
			return nil, fmt.Errorf("%w: more than %d levels", ErrTooDeep, MaxDepth)
		}
		v := &Value{Kind: Array}
		var err error
		r.ForEach(func(_, val gjson.Result) bool {
			var child *Value
			child, err = build(val, depth+1)
			if err != nil {
				return false
			}
			v.Items = append(v.Items, child)
			return true
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	switch r.Type {
	case gjson.String:
		return &Value{Kind: String, Str: r.Str}, nil
	case gjson.Number:
		return &Value{Kind: Number, Num: r.Num}, nil
	case gjson.True:
		return &Value{Kind: Bool, Bool: true}, nil
	case gjson.False:
		return &Value{Kind: Bool}, nil
	default:
		return &Value{Kind: Null}, nil
	}
}

// FromString wraps raw text as a string leaf.
func FromString(s string) *Value {
	return &Value{Kind: String, Str: s}
}

// IsContainer reports whether v is an object or an array.
func (v *Value) IsContainer() bool {
	return v.Kind == Object || v.Kind == Array
}

// Len returns the number of members or items of a container, zero for leaves.
func (v *Value) Len() int {
	switch v.Kind {
	case Object:
		return len(v.Members)
	case Array:
		return len(v.Items)
	}
	return 0
}

// Each calls fn for every child in document order. For arrays key is empty and
// index is the position; for objects index is the member position.
func (v *Value) Each(fn func(key string, index int, child *Value)) {
	switch v.Kind {
	case Object:
		for i, m := range v.Members {
			fn(m.Key, i, m.Value)
		}
	case Array:
		for i, item := range v.Items {
			fn("", i, item)
		}
	}
}

// Text returns the stringified form of a leaf: strings unquoted, numbers in their
// shortest decimal form, booleans and null as literals. Containers return "".
func (v *Value) Text() string {
	switch v.Kind {
	case String:
		return v.Str
	case Number:
		return FormatNumber(v.Num)
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Null:
		return "null"
	}
	return ""
}

// FormatNumber renders f the way a browser stringifies numbers.
func FormatNumber(f float64) string {
	abs := math.Abs(f)
	if abs == 0 {
		return "0"
	}
	if abs >= 1e-7 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	digits := strings.TrimLeft(exp[1:], "0")
	return mant + "e" + exp[:1] + digits
}
