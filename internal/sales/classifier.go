package sales

// ParcelShare is the fraction of a payment attributed to one parcel.
type ParcelShare struct {
	ParcelID int64
	Amount   float64
}

// SplitAcrossParcels divides a payment evenly across the sale's parcels. The
// aggregate record keeps no per-parcel breakdown, so an equal split is the
// best attribution available.
func SplitAcrossParcels(p Payment, parcelIDs []int64) []ParcelShare {
	if len(parcelIDs) == 0 {
		return nil
	}
	share := p.Amount / float64(len(parcelIDs))
	out := make([]ParcelShare, 0, len(parcelIDs))
	for _, id := range parcelIDs {
		out = append(out, ParcelShare{ParcelID: id, Amount: share})
	}
	return out
}

// CashReceived sums the sale's revenue-relevant ledger entries. Refunds never
// count as revenue. When the ledger carries no row of a type but the sale's
// denormalized reservation or down-payment field is non-zero (the payment was
// not recorded individually yet), the field is counted exactly once; presence
// of any matching ledger row for the sale suppresses the fallback regardless
// of amounts.
func CashReceived(sale Sale, payments []Payment) map[PaymentType]float64 {
	totals := make(map[PaymentType]float64)
	for _, p := range payments {
		if p.SaleID != sale.ID || p.Type == PaymentRefund {
			continue
		}
		totals[p.Type] += p.Amount
	}
	if _, ok := totals[PaymentSmallAdvance]; !ok && sale.Reservation > 0 {
		totals[PaymentSmallAdvance] = sale.Reservation
	}
	if _, ok := totals[PaymentBigAdvance]; !ok && sale.DownPayment > 0 {
		totals[PaymentBigAdvance] = sale.DownPayment
	}
	return totals
}

// TotalReceived sums every revenue bucket of CashReceived.
func TotalReceived(sale Sale, payments []Payment) float64 {
	var total float64
	for _, amount := range CashReceived(sale, payments) {
		total += amount
	}
	return total
}

// ReceivedPerParcel attributes the sale's per-type cash to each parcel by
// equal division.
func ReceivedPerParcel(sale Sale, payments []Payment) map[int64]map[PaymentType]float64 {
	n := sale.PieceCount()
	if n == 0 {
		return nil
	}
	out := make(map[int64]map[PaymentType]float64, n)
	for _, id := range sale.ParcelIDs {
		out[id] = make(map[PaymentType]float64)
	}
	for typ, amount := range CashReceived(sale, payments) {
		share := amount / float64(n)
		for _, id := range sale.ParcelIDs {
			out[id][typ] += share
		}
	}
	return out
}
