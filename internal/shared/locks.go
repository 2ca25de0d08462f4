package shared

import "fmt"

// InvoiceLockKey builds the redis key guarding payment application on one invoice.
func InvoiceLockKey(number string) string {
	return fmt.Sprintf("ledger:invoice:%s:lock", number)
}

// CustomerLockKey builds the redis key guarding one customer balance.
func CustomerLockKey(code string) string {
	return fmt.Sprintf("ledger:customer:%s:lock", code)
}

// QuotationLockKey builds the redis key guarding conversion of one quotation.
func QuotationLockKey(number string) string {
	return fmt.Sprintf("ledger:quotation:%s:lock", number)
}
