package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flicky/go-checkout-engine/internal/model"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func validContact() model.Contact {
	return model.Contact{
		FullName: "Ana Souza",
		Email:    "ana@example.com",
		Phone:    "(11) 98765-4321",
		TaxID:    "529.982.247-25",
	}
}

func validAddress() model.Address {
	return model.Address{
		Zip:          "01310-100",
		Street:       "Avenida Paulista",
		Number:       "1000",
		Neighborhood: "Bela Vista",
		City:         "São Paulo",
		State:        "SP",
	}
}

func validCard() *model.CardDetails {
	return &model.CardDetails{Number: "4111 1111 1111 1111", HolderName: "ANA SOUZA", Expiry: "12/30", CVV: "123"}
}

func fields(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidateContactAddress(t *testing.T) {
	v := newValidator(func() time.Time { return fixedNow })

	assert.Empty(t, validateContactAddress(v, validContact(), validAddress()))

	contact := validContact()
	contact.Email = ""
	contact.TaxID = "123.456.789-00"
	address := validAddress()
	address.Zip = ""
	address.State = "XX"

	got := fields(validateContactAddress(v, contact, address))
	assert.ElementsMatch(t, []string{"contact.email", "contact.taxId", "address.zip", "address.state"}, got)
}

func TestValidatePayment(t *testing.T) {
	v := newValidator(func() time.Time { return fixedNow })

	tests := []struct {
		name    string
		payment model.PaymentSelection
		want    []string
	}{
		{
			name:    "valid card",
			payment: model.PaymentSelection{Method: model.PaymentCreditCard, Card: validCard(), Installments: 3},
		},
		{
			name:    "pix ignores card and installments",
			payment: model.PaymentSelection{Method: model.PaymentPix, Card: &model.CardDetails{Number: "1"}, Installments: 40},
		},
		{
			name:    "boleto",
			payment: model.PaymentSelection{Method: model.PaymentBoleto},
		},
		{
			name:    "missing method",
			payment: model.PaymentSelection{},
			want:    []string{"payment.method"},
		},
		{
			name:    "card required",
			payment: model.PaymentSelection{Method: model.PaymentCreditCard, Installments: 1},
			want:    []string{"payment.card"},
		},
		{
			name: "bad card fields",
			payment: model.PaymentSelection{
				Method:       model.PaymentCreditCard,
				Card:         &model.CardDetails{Number: "4111111111111112", Expiry: "02/26", CVV: "12a"},
				Installments: 13,
			},
			want: []string{
				"payment.card.number", "payment.card.holderName", "payment.card.expiry",
				"payment.card.cvv", "payment.installments",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, fields(validatePayment(v, tt.payment)))
		})
	}
}

func TestValidExpiry(t *testing.T) {
	assert.True(t, validExpiry("03/26", fixedNow))
	assert.True(t, validExpiry("12/26", fixedNow))
	assert.False(t, validExpiry("02/26", fixedNow))
	assert.False(t, validExpiry("13/30", fixedNow))
	assert.False(t, validExpiry("1/30", fixedNow))
	assert.True(t, validExpiry("03/26", time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, validExpiry("03/26", time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
}

func TestValidCPF(t *testing.T) {
	assert.True(t, validCPF("529.982.247-25"))
	assert.True(t, validCPF("52998224725"))
	assert.False(t, validCPF("529.982.247-24"))
	assert.False(t, validCPF("111.111.111-11"))
	assert.False(t, validCPF("1234"))
}

func TestCardBrandAndLastFour(t *testing.T) {
	assert.Equal(t, "visa", cardBrand("4111 1111 1111 1111"))
	assert.Equal(t, "mastercard", cardBrand("5555555555554444"))
	assert.Equal(t, "amex", cardBrand("378282246310005"))
	assert.Equal(t, "1111", lastFour("4111 1111 1111 1111"))
}
