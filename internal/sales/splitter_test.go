package sales

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func threeParcelSale() Sale {
	fee := 6000.0
	return Sale{
		ID:               1,
		ClientID:         10,
		ParcelIDs:        []int64{11, 12, 13},
		Kind:             SaleKindInstallment,
		TotalPrice:       300000,
		TotalCost:        150000,
		ProfitMargin:     150000,
		Reservation:      15000,
		DownPayment:      60000,
		MonthlyAmount:    7500,
		CompanyFeeAmount: &fee,
		Status:           SaleStatusAwaitingPayment,
	}
}

func TestSplitSharesConservation(t *testing.T) {
	original := threeParcelSale()
	child, remainder, err := SplitShares(original, 12)
	require.NoError(t, err)

	require.Equal(t, []int64{12}, child.ParcelIDs)
	require.Equal(t, []int64{11, 13}, remainder.ParcelIDs)
	require.Zero(t, child.ID)

	tolerance := 0.01 * float64(original.PieceCount())
	require.InDelta(t, original.TotalPrice, child.TotalPrice+remainder.TotalPrice, tolerance)
	require.InDelta(t, original.TotalCost, child.TotalCost+remainder.TotalCost, tolerance)
	require.InDelta(t, original.ProfitMargin, child.ProfitMargin+remainder.ProfitMargin, tolerance)
	require.InDelta(t, original.Reservation, child.Reservation+remainder.Reservation, tolerance)
	require.InDelta(t, original.DownPayment, child.DownPayment+remainder.DownPayment, tolerance)
	require.InDelta(t, *original.CompanyFeeAmount, *child.CompanyFeeAmount+*remainder.CompanyFeeAmount, tolerance)

	require.InDelta(t, 100000, child.TotalPrice, 0.001)
	require.InDelta(t, 200000, remainder.TotalPrice, 0.001)
}

func TestSplitSharesFeeStaysNil(t *testing.T) {
	original := threeParcelSale()
	original.CompanyFeeAmount = nil
	child, remainder, err := SplitShares(original, 11)
	require.NoError(t, err)
	require.Nil(t, child.CompanyFeeAmount)
	require.Nil(t, remainder.CompanyFeeAmount)
}

func TestSplitSharesRejectsForeignParcel(t *testing.T) {
	_, _, err := SplitShares(threeParcelSale(), 99)
	require.ErrorIs(t, err, ErrParcelNotInSale)
}

func TestSplitSharesRejectsSingleParcel(t *testing.T) {
	sale := threeParcelSale()
	sale.ParcelIDs = []int64{11}
	_, _, err := SplitShares(sale, 11)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRescaleInstallmentsKeepsConsistency(t *testing.T) {
	rows := []Installment{
		{ID: 1, SaleID: 1, Number: 1, AmountDue: 9000, StackedAmount: 300, AmountPaid: 9000, Status: InstallmentPaid},
		{ID: 2, SaleID: 1, Number: 2, AmountDue: 9000, StackedAmount: 0, AmountPaid: 4500, Status: InstallmentPartial},
	}
	scaled := RescaleInstallments(rows, 2.0/3.0)
	require.Len(t, scaled, 2)
	require.InDelta(t, 6000, scaled[0].AmountDue, 0.001)
	require.InDelta(t, 200, scaled[0].StackedAmount, 0.001)
	require.InDelta(t, 6000, scaled[0].AmountPaid, 0.001)
	require.InDelta(t, 3000, scaled[1].AmountPaid, 0.001)

	// originals untouched
	require.InDelta(t, 9000, rows[0].AmountDue, 0.001)
}

func TestChildLedgerConservation(t *testing.T) {
	payments := []Payment{
		{ID: 1, SaleID: 1, Amount: 15000, Type: PaymentSmallAdvance},
		{ID: 2, SaleID: 1, Amount: 60000, Type: PaymentBigAdvance},
	}
	child := ChildLedger(payments, 3)
	require.Len(t, child, 2)
	for i, p := range child {
		require.Zero(t, p.ID)
		require.Zero(t, p.SaleID)
		require.InDelta(t, payments[i].Amount/3, p.Amount, 0.001)
		// child share + rescaled original share sums back to the original
		require.InDelta(t, payments[i].Amount, p.Amount+payments[i].Amount*2/3, 0.001)
	}

	require.Nil(t, ChildLedger(payments, 1))
}
