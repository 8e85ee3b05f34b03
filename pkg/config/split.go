package config

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Like strings.Fields but ignores spaces inside areas surrounded
// by the specified quote character.
// To specify a single quote use backslash to escape it: '\''
func SplitQuotedFields(in string, quote rune) []string {
	type stateEnum int
	const (
		inSpace stateEnum = iota
		inField
		inQuote
		inQuoteEscaped
	)
	state := inSpace
	r := []string{}
	var buf bytes.Buffer

	for _, ch := range in {
		switch state {
		case inSpace:
			if ch == quote {
				state = inQuote
			} else if !unicode.IsSpace(ch) {
				buf.WriteRune(ch)
				state = inField
			}

		case inField:
			if ch == quote {
				state = inQuote
			} else if unicode.IsSpace(ch) {
				r = append(r, buf.String())
				buf.Reset()
			} else {
				buf.WriteRune(ch)
			}

		case inQuote:
			if ch == quote {
				state = inField
			} else if ch == '\\' {
				state = inQuoteEscaped
			} else {
				buf.WriteRune(ch)
			}

		case inQuoteEscaped:
			buf.WriteRune(ch)
			state = inQuote
		}
	}

	if buf.Len() != 0 {
		r = append(r, buf.String())
	}

	return r
}

type configureIterator struct {
	cfgValue reflect.Value
	cfgType  reflect.Type
	tagName  string
	i        int
}

func iterateConfiguration(conf interface{}, tagName string) *configureIterator {
	cfgValue := reflect.ValueOf(conf).Elem()
	cfgType := cfgValue.Type()

	return &configureIterator{cfgValue, cfgType, tagName, -1}
}

func (it *configureIterator) Next() bool {
	it.i++
	return it.i < it.cfgValue.NumField()
}

func (it *configureIterator) Field() (name string, field reflect.Value) {
	name = it.cfgType.Field(it.i).Tag.Get(it.tagName)
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	field = it.cfgValue.Field(it.i)
	return
}

// ConfigureFindFieldByName returns the struct field of conf whose tag
// matches name.
func ConfigureFindFieldByName(conf interface{}, name, tagName string) reflect.Value {
	it := iterateConfiguration(conf, tagName)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == name {
			return field
		}
	}
	return reflect.ValueOf(nil)
}

// ConfigureList writes every configuration parameter of conf and its
// current value to w, one tab-separated line per parameter.
func ConfigureList(w io.Writer, conf interface{}, tagName string) error {
	it := iterateConfiguration(conf, tagName)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}
		writeField(w, field, fieldName)
	}
	return nil
}

// ConfigureListByName returns the tab-separated line describing the
// configuration parameter of sargs named cfgname, or the empty string
// if there is no such parameter.
func ConfigureListByName(sargs interface{}, cfgname, tagName string) string {
	if sargs == nil || cfgname == "" {
		return ""
	}
	var buf bytes.Buffer
	it := iterateConfiguration(sargs, tagName)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == cfgname {
			writeField(&buf, field, fieldName)
			break
		}
	}
	return buf.String()
}

func writeField(w io.Writer, field reflect.Value, fieldName string) {
	if field.Kind() == reflect.Ptr {
		if !field.IsNil() {
			fmt.Fprintf(w, "%s\t%v\n", fieldName, field.Elem())
		} else {
			fmt.Fprintf(w, "%s\t<not defined>\n", fieldName)
		}
	} else {
		fmt.Fprintf(w, "%s\t%v\n", fieldName, field)
	}
}

// ConfigureSetSimple parses rest as a value appropriate for field and
// assigns it. Only scalar parameter types are supported.
func ConfigureSetSimple(rest, cfgname string, field reflect.Value) error {
	simpleArg := func(typ reflect.Type) (reflect.Value, error) {
		switch typ.Kind() {
		case reflect.Int:
			n, err := strconv.Atoi(rest)
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number", cfgname)
			}
			if n < 0 {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number greater than zero", cfgname)
			}
			return reflect.ValueOf(&n), nil
		case reflect.Bool:
			v := rest == "true"
			return reflect.ValueOf(&v), nil
		case reflect.String:
			unquoted, err := strconv.Unquote(rest)
			if err == nil {
				rest = unquoted
			}
			return reflect.ValueOf(&rest), nil
		default:
			return reflect.ValueOf(nil), fmt.Errorf("unsupported type for configuration key %q", cfgname)
		}
	}
	if field.Kind() == reflect.Ptr {
		val, err := simpleArg(field.Type().Elem())
		if err != nil {
			return err
		}
		field.Set(val)
	} else {
		val, err := simpleArg(field.Type())
		if err != nil {
			return err
		}
		field.Set(val.Elem())
	}
	return nil
}
