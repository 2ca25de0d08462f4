package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/app"
	"github.com/sunmax/ledger/internal/customers"
	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/platform/db"
	"github.com/sunmax/ledger/internal/quotations"
)

// Seeds a handful of demo records through the services so numbering,
// status derivation and payments follow the same rules as the API.
func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	services := app.NewServices(app.ServiceDeps{Config: cfg, Logger: app.NewLogger(cfg), Pool: pool})

	fmt.Println("→ Seeding invoices...")
	if err := seedInvoices(ctx, services.Invoices); err != nil {
		log.Fatalf("seed invoices: %v", err)
	}
	fmt.Println("→ Seeding quotations...")
	if err := seedQuotations(ctx, services.Quotations); err != nil {
		log.Fatalf("seed quotations: %v", err)
	}
	fmt.Println("→ Seeding customers...")
	if err := seedCustomers(ctx, services.Customers); err != nil {
		log.Fatalf("seed customers: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func item(code, name string, kind invoicing.InvoiceType, price string, qty int, discount, gst string) invoicing.CartItem {
	return invoicing.CartItem{
		Code:            code,
		Name:            name,
		ItemType:        kind,
		UnitPrice:       decimal.RequireFromString(price),
		Quantity:        qty,
		DiscountPercent: decimal.RequireFromString(discount),
		GSTRatePercent:  decimal.RequireFromString(gst),
	}
}

func seedInvoices(ctx context.Context, svc *invoicing.Service) error {
	partial := decimal.NewFromInt(5000)
	carts := []invoicing.CheckoutInput{
		{
			Customer:      invoicing.Customer{Name: "Asha Traders", Phone: "9876543210", Address: "12 MG Road, Pune"},
			PaymentMethod: "Cash",
			Status:        string(invoicing.StatusFullyPaid),
			Items: []invoicing.CartItem{
				item("PNL-540", "Mono PERC Panel 540W", invoicing.TypeProduct, "14500", 2, "5", "12"),
				item("INST-01", "Rooftop Installation", invoicing.TypeService, "3500", 1, "0", "18"),
			},
		},
		{
			Customer:      invoicing.Customer{Name: "Ravi Kumar", Phone: "9123456780", Email: "ravi@example.com"},
			PaymentMethod: "UPI",
			Status:        string(invoicing.StatusPartiallyPaid),
			AmountPaid:    &partial,
			Items: []invoicing.CartItem{
				item("INV-5K", "Hybrid Inverter 5kVA", invoicing.TypeProduct, "42000", 1, "10", "18"),
			},
		},
		{
			Customer:      invoicing.Customer{Name: "Meena Stores"},
			PaymentMethod: "Bank Transfer",
			Status:        string(invoicing.StatusUnpaid),
			Items: []invoicing.CartItem{
				item("BAT-150", "Tubular Battery 150Ah", invoicing.TypeProduct, "12999", 4, "0", "28"),
			},
		},
	}
	for _, cart := range carts {
		inv, err := svc.Checkout(ctx, cart)
		if err != nil {
			return err
		}
		fmt.Printf("  %s %s total=%s status=%s\n", inv.Number, inv.Customer.Name, inv.TotalAmount.StringFixed(2), inv.Status)
	}
	return nil
}

func seedQuotations(ctx context.Context, svc *quotations.Service) error {
	q, err := svc.Create(ctx, quotations.CreateInput{
		Customer:   quotations.Customer{Name: "Sunrise Apartments", Phone: "9988776655"},
		AskedAbout: "3kW rooftop system",
		Items: []quotations.ItemInput{
			{Code: "PNL-540", Name: "Mono PERC Panel 540W", ItemType: invoicing.TypeProduct, UnitPrice: decimal.NewFromInt(14500), Quantity: 6, GSTRatePercent: decimal.NewFromInt(12)},
			{Code: "INST-01", Name: "Rooftop Installation", ItemType: invoicing.TypeService, UnitPrice: decimal.NewFromInt(3500), Quantity: 1, GSTRatePercent: decimal.NewFromInt(18)},
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s %s total=%s\n", q.Number, q.Customer.Name, q.TotalAmount.StringFixed(2))
	return nil
}

func seedCustomers(ctx context.Context, svc *customers.Service) error {
	accounts := []customers.CreateInput{
		{Name: "Gopal Farms", Phone: "9012345678", ProductDescription: "Solar water pump", PaymentMethod: "Cash", TotalAmount: decimal.NewFromInt(65000), AmountPaid: decimal.NewFromInt(20000)},
		{Name: "Lakshmi Textiles", ProductDescription: "10kW on-grid plant", PaymentMethod: "Cheque", TotalAmount: decimal.NewFromInt(480000)},
	}
	for _, in := range accounts {
		c, err := svc.Create(ctx, in)
		if err != nil {
			return err
		}
		fmt.Printf("  %s %s balance=%s status=%s\n", c.Code, c.Name, c.BalanceDue().StringFixed(2), c.Status)
	}
	return nil
}
