package sales

// The splitter peels one parcel out of a multi-parcel sale so that a
// parcel-scoped action (confirmation or cancellation) can proceed against an
// independent single-parcel sale. The aggregate keeps no per-parcel price
// breakdown, so every financial field is divided equally per parcel.

// SplitShares computes the child sale for the acted-upon parcel and the
// shrunk remainder of the original. The child carries 1/n of every financial
// field; the remainder keeps (n-1)/n. The child is returned without an ID;
// persisting it is the caller's job.
func SplitShares(sale Sale, parcelID int64) (child Sale, remainder Sale, err error) {
	if !sale.HasParcel(parcelID) {
		return Sale{}, Sale{}, ErrParcelNotInSale
	}
	n := sale.PieceCount()
	if n < 2 {
		return Sale{}, Sale{}, ErrInvalidStatus
	}
	ratio := float64(n-1) / float64(n)

	child = sale
	child.ID = 0
	child.ParcelIDs = []int64{parcelID}
	scaleFinancials(&child, 1/float64(n))

	remainder = sale
	remaining := make([]int64, 0, n-1)
	for _, id := range sale.ParcelIDs {
		if id != parcelID {
			remaining = append(remaining, id)
		}
	}
	remainder.ParcelIDs = remaining
	scaleFinancials(&remainder, ratio)

	return child, remainder, nil
}

// RescaleInstallments multiplies every money column of the rows by ratio so
// outstanding balances stay internally consistent after a split or a
// parcel cancellation.
func RescaleInstallments(rows []Installment, ratio float64) []Installment {
	out := make([]Installment, len(rows))
	for i, row := range rows {
		row.AmountDue *= ratio
		row.StackedAmount *= ratio
		row.AmountPaid *= ratio
		out[i] = row
	}
	return out
}

// ChildLedger clones the sale's ledger for a split child at 1/n of each
// amount. Originals are rescaled separately by (n-1)/n so the two ledgers
// sum back to the pre-split one.
func ChildLedger(payments []Payment, pieceCount int) []Payment {
	if pieceCount < 2 {
		return nil
	}
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		p.ID = 0
		p.SaleID = 0
		p.Amount /= float64(pieceCount)
		out = append(out, p)
	}
	return out
}

func scaleFinancials(s *Sale, factor float64) {
	s.TotalPrice *= factor
	s.TotalCost *= factor
	s.ProfitMargin *= factor
	s.Reservation *= factor
	s.DownPayment *= factor
	s.MonthlyAmount *= factor
	if s.CompanyFeeAmount != nil {
		fee := *s.CompanyFeeAmount * factor
		s.CompanyFeeAmount = &fee
	}
}
