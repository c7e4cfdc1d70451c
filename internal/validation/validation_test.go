package validation

import (
	"testing"

	"buildbidz.in/internal/models"
)

func TestValidateCreateOrderForm(t *testing.T) {
	valid := models.CreateOrderForm{
		BidID:     "0b9f9f6e-3c6a-4f6e-9b1a-2f9d8c7b6a5e",
		ProjectID: "1c8e8e5d-2b5a-4e5d-8a0b-1e8c7b6a5d4f",
		Amount:    "5000.00",
		Currency:  "INR",
		Type:      "escrow",
	}

	if errs := ValidateStruct(valid); errs != nil {
		t.Fatalf("valid form rejected: %v", errs)
	}

	tests := []struct {
		name   string
		mutate func(*models.CreateOrderForm)
		field  string
	}{
		{"bid id not a uuid", func(f *models.CreateOrderForm) { f.BidID = "bid-1" }, "bid_id"},
		{"amount zero", func(f *models.CreateOrderForm) { f.Amount = "0" }, "amount"},
		{"amount negative", func(f *models.CreateOrderForm) { f.Amount = "-5.00" }, "amount"},
		{"amount with three decimals", func(f *models.CreateOrderForm) { f.Amount = "10.005" }, "amount"},
		{"amount not a number", func(f *models.CreateOrderForm) { f.Amount = "ten" }, "amount"},
		{"currency lowercase", func(f *models.CreateOrderForm) { f.Currency = "inr" }, "currency"},
		{"currency wrong length", func(f *models.CreateOrderForm) { f.Currency = "RUPE" }, "currency"},
		{"unknown payment type", func(f *models.CreateOrderForm) { f.Type = "credit" }, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid
			tt.mutate(&form)
			errs := ValidateStruct(form)
			if errs == nil {
				t.Fatal("expected a validation error")
			}
			if errs.Get(tt.field) == "" {
				t.Errorf("expected an error on field %q, got %v", tt.field, errs)
			}
		})
	}
}

func TestDecimalAmountEdgeCases(t *testing.T) {
	form := models.PlaceBidForm{
		ProjectID:    "0b9f9f6e-3c6a-4f6e-9b1a-2f9d8c7b6a5e",
		Currency:     "INR",
		DeliveryDays: 30,
	}

	accepted := []string{"0.01", "1", "5000.00", "123456.7"}
	for _, amount := range accepted {
		form.Price = amount
		if errs := ValidateStruct(form); errs != nil {
			t.Errorf("amount %q should be accepted: %v", amount, errs)
		}
	}

	rejected := []string{"0", "0.00", "-1", "1.234", "1e3a", ""}
	for _, amount := range rejected {
		form.Price = amount
		if errs := ValidateStruct(form); errs == nil {
			t.Errorf("amount %q should be rejected", amount)
		}
	}
}
