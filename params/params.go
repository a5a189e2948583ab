// Package params holds the per-session selection parameters.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultUpSotsCount     = 5
	DefaultSensitivity     = 0.5
	DefaultSortByRelevance = true
)

var ErrInvalidParameter = errors.New("invalid parameter")

// Parameters configures the Selection Engine.
type Parameters struct {
	UpSotsCount     int     `json:"up_sots_count" yaml:"up_sots_count" mapstructure:"up_sots_count" validate:"gt=0"`
	Sensitivity     float64 `json:"sensitivity" yaml:"sensitivity" mapstructure:"sensitivity" validate:"gte=0,lte=1"`
	SortByRelevance bool    `json:"sort_by_relevance" yaml:"sort_by_relevance" mapstructure:"sort_by_relevance"`
}

// Defaults returns the built-in parameter values.
func Defaults() Parameters {
	return Parameters{
		UpSotsCount:     DefaultUpSotsCount,
		Sensitivity:     DefaultSensitivity,
		SortByRelevance: DefaultSortByRelevance,
	}
}

// Partial is a field-by-field update; nil fields keep their current value.
type Partial struct {
	UpSotsCount     *int     `json:"up_sots_count,omitempty"`
	Sensitivity     *float64 `json:"sensitivity,omitempty"`
	SortByRelevance *bool    `json:"sort_by_relevance,omitempty"`
}

// ErrNoParameters is returned by DecodePartial when the body names no
// known parameter.
var ErrNoParameters = errors.New("no parameters provided")

// Empty reports whether p updates nothing.
func (p Partial) Empty() bool {
	return p.UpSotsCount == nil && p.Sensitivity == nil && p.SortByRelevance == nil
}

// DecodePartial decodes a JSON object field by field. A field with the
// wrong type becomes a *FieldError and the other fields still decode.
// Unknown keys are ignored. A body that is not a JSON object, or that has
// no known key, fails with ErrNoParameters.
func DecodePartial(data []byte) (Partial, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Partial{}, ErrNoParameters
	}

	var (
		p     Partial
		errs  []error
		known bool
	)
	note := func(ok bool, err error) {
		known = known || ok
		if err != nil {
			errs = append(errs, err)
		}
	}
	note(decodeField(raw, "up_sots_count", &p.UpSotsCount))
	note(decodeField(raw, "sensitivity", &p.Sensitivity))
	note(decodeField(raw, "sort_by_relevance", &p.SortByRelevance))
	if !known {
		return Partial{}, ErrNoParameters
	}
	return p, errors.Join(errs...)
}

func decodeField[T any](raw map[string]json.RawMessage, name string, dst **T) (bool, error) {
	v, ok := raw[name]
	if !ok {
		return false, nil
	}
	var val T
	if string(v) == "null" || json.Unmarshal(v, &val) != nil {
		return true, &FieldError{Field: name, Value: string(v), Reason: typeReasons[name]}
	}
	*dst = &val
	return true, nil
}

// FieldError reports one rejected field.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v %s", e.Field, e.Value, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidParameter }

var reasons = map[string]string{
	"up_sots_count": "must be a positive integer",
	"sensitivity":   "must be between 0 and 1",
}

var typeReasons = map[string]string{
	"up_sots_count":     "must be an integer",
	"sensitivity":       "must be a number",
	"sort_by_relevance": "must be a boolean",
}

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		})
	})
	return validate
}

// Validate checks every field of p and reports each failure.
func (p Parameters) Validate() error {
	err := getValidator().Struct(p)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &FieldError{Field: fe.Field(), Value: fe.Value(), Reason: reasons[fe.Field()]})
	}
	return errors.Join(errs...)
}

func checkField(name string, value any, tag string) *FieldError {
	if err := getValidator().Var(value, tag); err != nil {
		return &FieldError{Field: name, Value: value, Reason: reasons[name]}
	}
	return nil
}

// Controller guards one session's parameter record.
type Controller struct {
	mu  sync.RWMutex
	cur Parameters
}

// NewController starts from initial, falling back to Defaults when initial
// is not valid.
func NewController(initial Parameters) *Controller {
	if initial.Validate() != nil {
		initial = Defaults()
	}
	return &Controller{cur: initial}
}

func (c *Controller) Get() Parameters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Set applies every valid field of p and returns the resulting record.
// Invalid fields are skipped and reported together in the returned error,
// which matches ErrInvalidParameter.
func (c *Controller) Set(p Partial) (Parameters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if p.UpSotsCount != nil {
		if fe := checkField("up_sots_count", *p.UpSotsCount, "gt=0"); fe != nil {
			errs = append(errs, fe)
		} else {
			c.cur.UpSotsCount = *p.UpSotsCount
		}
	}
	if p.Sensitivity != nil {
		if fe := checkField("sensitivity", *p.Sensitivity, "gte=0,lte=1"); fe != nil {
			errs = append(errs, fe)
		} else {
			c.cur.Sensitivity = *p.Sensitivity
		}
	}
	if p.SortByRelevance != nil {
		c.cur.SortByRelevance = *p.SortByRelevance
	}
	return c.cur, errors.Join(errs...)
}

// Fields lists the rejected fields carried by err.
func Fields(err error) []*FieldError {
	if err == nil {
		return nil
	}
	var out []*FieldError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, Fields(e)...)
		}
		return out
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		out = append(out, fe)
	}
	return out
}
