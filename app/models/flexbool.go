package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexBool is the store-boundary boolean for flag columns. Older rows carry
// these flags as tinyint, "0"/"1", "true"/"false" or "yes"/"no"; Scan folds all
// of them into a real bool so business code never sees the raw representation.
type FlexBool bool

// Bool returns the plain boolean value.
func (b FlexBool) Bool() bool {
	return bool(b)
}

// Scan implements sql.Scanner.
func (b *FlexBool) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*b = false
	case bool:
		*b = FlexBool(v)
	case int64:
		*b = v != 0
	case int32:
		*b = v != 0
	case int:
		*b = v != 0
	case uint8:
		*b = v != 0
	case float64:
		*b = v != 0
	case []byte:
		return b.scanString(string(v))
	case string:
		return b.scanString(v)
	default:
		return fmt.Errorf("flexbool: unsupported type %T", value)
	}
	return nil
}

func (b *FlexBool) scanString(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "f", "no", "n", "off":
		*b = false
		return nil
	case "1", "true", "t", "yes", "y", "on":
		*b = true
		return nil
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		*b = n != 0
		return nil
	}
	return fmt.Errorf("flexbool: cannot parse %q", s)
}

// Value implements driver.Valuer.
func (b FlexBool) Value() (driver.Value, error) {
	return bool(b), nil
}

// MarshalJSON keeps the API shape a plain JSON boolean.
func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// UnmarshalJSON accepts booleans as well as the legacy string/number forms.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = FlexBool(v)
		return nil
	case float64:
		*b = v != 0
		return nil
	case string:
		return b.scanString(v)
	case nil:
		*b = false
		return nil
	}
	return fmt.Errorf("flexbool: cannot unmarshal %s", string(data))
}

// GormDataType lets AutoMigrate create a boolean column.
func (FlexBool) GormDataType() string {
	return "bool"
}
