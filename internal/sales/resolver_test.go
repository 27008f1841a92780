package sales

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestResolveTerminalStatusesTrusted(t *testing.T) {
	sale := Sale{ID: 1, Kind: SaleKindInstallment, Status: SaleStatusCancelled}
	require.Equal(t, StateCancelled, Resolve(sale, nil, nil))

	sale.Status = SaleStatusCompleted
	require.Equal(t, StateCompleted, Resolve(sale, nil, nil))
}

func TestResolveUnconfirmedIsPending(t *testing.T) {
	sale := Sale{ID: 1, Kind: SaleKindInstallment, Status: SaleStatusPending, Reservation: 5000}
	payments := []Payment{{SaleID: 1, Amount: 5000, Type: PaymentSmallAdvance}}
	require.Equal(t, StatePending, Resolve(sale, payments, nil))
}

func TestResolveConfirmationWitnesses(t *testing.T) {
	base := Sale{ID: 1, Kind: SaleKindInstallment, Status: SaleStatusPending, Reservation: 5000}

	// any single witness flips the sale to confirmed
	withFee := base
	withFee.CompanyFeeAmount = floatPtr(0) // zero fee still counts
	require.Equal(t, StateAwaitingPayment, Resolve(withFee, nil, nil))

	withDown := base
	withDown.DownPayment = 20000
	require.Equal(t, StateInstallmentsOngoing, Resolve(withDown, nil, nil))

	withFlag := base
	withFlag.Confirmed = true
	require.Equal(t, StateAwaitingPayment, Resolve(withFlag, nil, nil))

	ledgerOnly := base
	payments := []Payment{{SaleID: 1, Amount: 20000, Type: PaymentBigAdvance}}
	require.Equal(t, StateInstallmentsOngoing, Resolve(ledgerOnly, payments, nil))
}

func TestResolveResetSaleNeverConfirmed(t *testing.T) {
	// fee history wiped by reset: all reset-predicate fields at defaults
	sale := Sale{ID: 1, Kind: SaleKindInstallment, Status: SaleStatusPending}
	require.True(t, IsReset(sale))
	require.Equal(t, StatePending, Resolve(sale, nil, nil))
}

func TestResolveInstallmentCompletion(t *testing.T) {
	sale := Sale{ID: 1, Kind: SaleKindInstallment, Status: SaleStatusAwaitingPayment, DownPayment: 20000}
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	partial := []Installment{
		{SaleID: 1, Number: 1, AmountDue: 8000, AmountPaid: 8000, DueDate: due, Status: InstallmentPaid},
		{SaleID: 1, Number: 2, AmountDue: 8000, DueDate: due.AddDate(0, 1, 0), Status: InstallmentUnpaid},
	}
	require.Equal(t, StateInstallmentsOngoing, Resolve(sale, nil, partial))

	allPaid := []Installment{
		{SaleID: 1, Number: 1, AmountDue: 8000, AmountPaid: 8000, DueDate: due, Status: InstallmentPaid},
		{SaleID: 1, Number: 2, AmountDue: 8000, AmountPaid: 8000, DueDate: due.AddDate(0, 1, 0), Status: InstallmentPaid},
	}
	require.Equal(t, StateCompleted, Resolve(sale, nil, allPaid))

	// an empty schedule is never "all paid"
	require.Equal(t, StateInstallmentsOngoing, Resolve(sale, nil, nil))
}

func TestResolveFullSale(t *testing.T) {
	sale := Sale{ID: 1, Kind: SaleKindFull, Status: SaleStatusPending, Reservation: 5000, Confirmed: true}
	require.Equal(t, StateAwaitingPayment, Resolve(sale, nil, nil))

	payments := []Payment{{SaleID: 1, Amount: 95000, Type: PaymentFull}}
	require.Equal(t, StateCompleted, Resolve(sale, payments, nil))
}

func TestResolvePromiseSale(t *testing.T) {
	sale := Sale{ID: 1, Kind: SaleKindPromise, Status: SaleStatusPending, Confirmed: true, Reservation: 5000}
	require.Equal(t, StateAwaitingPayment, Resolve(sale, nil, nil))

	sale.PromiseCompleted = true
	require.Equal(t, StateCompleted, Resolve(sale, nil, nil))
}

func TestResolveDeterministic(t *testing.T) {
	sale := Sale{ID: 7, Kind: SaleKindInstallment, Status: SaleStatusPending, Reservation: 5000, DownPayment: 20000}
	payments := []Payment{
		{SaleID: 7, Amount: 5000, Type: PaymentSmallAdvance},
		{SaleID: 7, Amount: 20000, Type: PaymentBigAdvance},
	}
	installments := []Installment{
		{SaleID: 7, Number: 1, AmountDue: 8000, Status: InstallmentPartial},
	}
	first := Resolve(sale, payments, installments)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, Resolve(sale, payments, installments))
	}
}

func TestResolveIgnoresOtherSalesRecords(t *testing.T) {
	sale := Sale{ID: 1, Kind: SaleKindInstallment, Status: SaleStatusPending, Reservation: 5000}
	otherSale := []Payment{{SaleID: 2, Amount: 20000, Type: PaymentBigAdvance}}
	require.Equal(t, StatePending, Resolve(sale, otherSale, nil))

	otherInstallments := []Installment{{SaleID: 2, Number: 1, AmountDue: 100, AmountPaid: 100, Status: InstallmentPaid}}
	require.Equal(t, StatePending, Resolve(sale, nil, otherInstallments))
}
