package service

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/flicky/go-checkout-engine/internal/model"
)

var brazilianStates = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true, "DF": true,
	"ES": true, "GO": true, "MA": true, "MT": true, "MS": true, "MG": true, "PA": true,
	"PB": true, "PR": true, "PE": true, "PI": true, "RJ": true, "RN": true, "RS": true,
	"RO": true, "RR": true, "SC": true, "SP": true, "SE": true, "TO": true,
}

var fieldReasons = map[string]string{
	"required":    "is required",
	"email":       "must be a valid email address",
	"phone":       "must have 10 or 11 digits",
	"cpf":         "must be a valid CPF",
	"cep":         "must have 8 digits",
	"uf":          "must be a valid state abbreviation",
	"luhn":        "must be a valid card number",
	"cardexpiry":  "must be a future MM/YY date",
	"numeric":     "must contain only digits",
	"min":         "is too short",
	"max":         "is too long",
	"oneof":       "is not supported",
	"required_if": "is required",
}

type contactAddressForm struct {
	Contact model.Contact `json:"contact"`
	Address model.Address `json:"address"`
}

type paymentForm struct {
	Payment model.PaymentSelection `json:"payment"`
}

func newValidator(now func() time.Time) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"phone": func(fl validator.FieldLevel) bool {
			n := len(digitsOf(fl.Field().String()))
			return n == 10 || n == 11
		},
		"cpf": func(fl validator.FieldLevel) bool { return validCPF(fl.Field().String()) },
		"cep": func(fl validator.FieldLevel) bool { return len(digitsOf(fl.Field().String())) == 8 },
		"uf": func(fl validator.FieldLevel) bool {
			return brazilianStates[strings.ToUpper(strings.TrimSpace(fl.Field().String()))]
		},
		"luhn": func(fl validator.FieldLevel) bool { return validLuhn(fl.Field().String()) },
		"cardexpiry": func(fl validator.FieldLevel) bool {
			return validExpiry(fl.Field().String(), now())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
}

func validateContactAddress(v *validator.Validate, contact model.Contact, address model.Address) []FieldError {
	return fieldErrors(v.Struct(contactAddressForm{Contact: contact, Address: address}))
}

func validatePayment(v *validator.Validate, payment model.PaymentSelection) []FieldError {
	return fieldErrors(v.Struct(paymentForm{Payment: normalizePayment(payment)}))
}

// normalizePayment drops card data and installments for methods that do not
// use them.
func normalizePayment(p model.PaymentSelection) model.PaymentSelection {
	if p.Method != model.PaymentCreditCard {
		p.Card = nil
		p.Installments = 1
	}
	if p.Installments == 0 {
		p.Installments = 1
	}
	return p
}

func fieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "form", Reason: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		reason, ok := fieldReasons[fe.Tag()]
		if !ok {
			reason = "is invalid"
		}
		out = append(out, FieldError{Field: field, Reason: reason})
	}
	return out
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validCPF(raw string) bool {
	d := digitsOf(raw)
	if len(d) != 11 || strings.Count(d, d[:1]) == 11 {
		return false
	}
	check := func(n int) byte {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		r := sum % 11
		if r < 2 {
			return '0'
		}
		return byte('0' + 11 - r)
	}
	return check(9) == d[9] && check(10) == d[10]
}

func validLuhn(raw string) bool {
	d := strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), "-", "")
	if len(d) < 13 || len(d) > 19 || digitsOf(d) != d {
		return false
	}
	sum := 0
	double := false
	for i := len(d) - 1; i >= 0; i-- {
		n := int(d[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// validExpiry accepts MM/YY; a card stays valid through the last day of its
// expiry month.
func validExpiry(raw string, now time.Time) bool {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	firstOfNext := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return now.UTC().Before(firstOfNext)
}

func cardBrand(number string) string {
	d := digitsOf(number)
	switch {
	case strings.HasPrefix(d, "4"):
		return "visa"
	case len(d) >= 2 && d[:2] >= "51" && d[:2] <= "55":
		return "mastercard"
	case strings.HasPrefix(d, "34"), strings.HasPrefix(d, "37"):
		return "amex"
	case strings.HasPrefix(d, "636368"), strings.HasPrefix(d, "504175"), strings.HasPrefix(d, "6362"):
		return "elo"
	default:
		return "other"
	}
}

func lastFour(number string) string {
	d := digitsOf(number)
	if len(d) < 4 {
		return d
	}
	return d[len(d)-4:]
}
