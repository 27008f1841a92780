package sales

// This file reconstructs a sale's lifecycle state from its raw records.
// Confirmation is not stored as one atomic flag: the fee amount, the down
// payment, the explicit flag and the ledger each independently witness it,
// so several fields are read as redundant evidence of the same fact.

// IsReset reports whether the sale was reverted to pre-reservation defaults.
// A reset sale must never be read as confirmed, even though its fee field
// history could otherwise suggest so.
func IsReset(sale Sale) bool {
	return sale.Status == SaleStatusPending &&
		sale.Reservation == 0 &&
		sale.DownPayment == 0 &&
		sale.CompanyFeeAmount == nil
}

// IsConfirmed infers whether a confirmation event ever happened for the sale.
// Any one witness suffices: a non-nil company fee (zero included), a positive
// down payment, the explicit flag, or a down-payment/full-payment ledger row.
func IsConfirmed(sale Sale, payments []Payment) bool {
	if IsReset(sale) {
		return false
	}
	if sale.CompanyFeeAmount != nil {
		return true
	}
	if sale.DownPayment > 0 {
		return true
	}
	if sale.Confirmed {
		return true
	}
	for _, p := range payments {
		if p.SaleID != sale.ID {
			continue
		}
		if p.Type == PaymentBigAdvance || p.Type == PaymentFull {
			return true
		}
	}
	return false
}

// Resolve derives the lifecycle state of a sale from the sale record, its
// payments and its installments. It is a pure function: identical inputs
// always produce the same state.
func Resolve(sale Sale, payments []Payment, installments []Installment) LifecycleState {
	// Terminal markers are the only stored statuses that are trusted.
	if sale.Status == SaleStatusCancelled {
		return StateCancelled
	}
	if sale.Status == SaleStatusCompleted {
		return StateCompleted
	}

	if sale.Kind == SaleKindInstallment && allInstallmentsPaid(sale.ID, installments) {
		return StateCompleted
	}
	if sale.Kind == SaleKindPromise && sale.PromiseCompleted {
		return StateCompleted
	}

	if !IsConfirmed(sale, payments) {
		return StatePending
	}

	switch sale.Kind {
	case SaleKindInstallment:
		if downPaymentRecorded(sale, payments) {
			return StateInstallmentsOngoing
		}
		return StateAwaitingPayment
	case SaleKindFull:
		if hasPaymentOfType(sale.ID, payments, PaymentFull) {
			return StateCompleted
		}
		return StateAwaitingPayment
	default: // promise of sale, completion flag not set
		return StateAwaitingPayment
	}
}

func allInstallmentsPaid(saleID int64, installments []Installment) bool {
	found := false
	for _, ins := range installments {
		if ins.SaleID != saleID {
			continue
		}
		found = true
		if ins.Status != InstallmentPaid {
			return false
		}
	}
	return found
}

func downPaymentRecorded(sale Sale, payments []Payment) bool {
	if sale.DownPayment > 0 {
		return true
	}
	return hasPaymentOfType(sale.ID, payments, PaymentBigAdvance)
}

func hasPaymentOfType(saleID int64, payments []Payment, typ PaymentType) bool {
	for _, p := range payments {
		if p.SaleID == saleID && p.Type == typ {
			return true
		}
	}
	return false
}
