package finance

import (
	"sort"

	"github.com/terrabook/terrabook/internal/sales"
	"github.com/terrabook/terrabook/internal/shared"
)

// BuildReport reconciles a snapshot into the grouped report. Pure function:
// the same snapshot and range always produce the same report, which is what
// lets the output be cached and re-derived at will.
//
// The derivation mirrors the lifecycle resolver on purpose: a sale the
// resolver would not call confirmed must not have its down payment reported,
// or the two views drift apart.
func BuildReport(snapshot Snapshot, dateRange shared.DateRange) *Report {
	parcelsByID := make(map[int64]ParcelRef, len(snapshot.Parcels))
	for _, p := range snapshot.Parcels {
		parcelsByID[p.ID] = p
	}
	paymentsBySale := make(map[int64][]sales.Payment)
	for _, p := range snapshot.Payments {
		paymentsBySale[p.SaleID] = append(paymentsBySale[p.SaleID], p)
	}

	// Step 1: sales surviving the range filter. Cancelled and reset sales
	// contribute nothing to any bucket.
	surviving := make(map[int64]sales.Sale)
	for _, sale := range snapshot.Sales {
		if sale.Status == sales.SaleStatusCancelled {
			continue
		}
		if sales.IsReset(sale) {
			continue
		}
		if !dateRange.Contains(sale.CreatedAt) {
			continue
		}
		surviving[sale.ID] = sale
	}

	acc := newAccumulator(parcelsByID)

	// Step 2+3: ledger rows. Refunds never count. A BigAdvance row only
	// counts when its sale is confirmed per the resolver's rule; a
	// SmallAdvance counts unconditionally because a reservation is real money
	// regardless of what happened later. Fee collections recorded as cash are
	// skipped here; the fee bucket is derived from the sale field below.
	for _, payment := range snapshot.Payments {
		sale, ok := surviving[payment.SaleID]
		if !ok {
			continue
		}
		if !dateRange.Contains(payment.PaidAt) {
			continue
		}
		bucket, ok := bucketFor(payment.Type)
		if !ok {
			continue
		}
		if bucket == BucketBigAdvance && !sales.IsConfirmed(sale, paymentsBySale[sale.ID]) {
			continue
		}
		acc.add(bucket, sale, payment.Amount)
	}

	// Denormalized fallback, same membership rule as the classifier: the
	// sale's own reservation/down-payment field counts exactly once, only
	// when no ledger row of that type exists for the sale.
	for _, sale := range surviving {
		ledger := paymentsBySale[sale.ID]
		if sale.Reservation > 0 && !hasType(ledger, sales.PaymentSmallAdvance) {
			acc.add(BucketSmallAdvance, sale, sale.Reservation)
		}
		if sale.DownPayment > 0 && !hasType(ledger, sales.PaymentBigAdvance) && sales.IsConfirmed(sale, ledger) {
			acc.add(BucketBigAdvance, sale, sale.DownPayment)
		}
		// Step 3: the company fee comes from the sale field, never from a
		// payment row.
		if fee := sale.FeeAmount(); fee > 0 {
			acc.add(BucketCompanyFee, sale, fee)
		}
	}

	return acc.report(dateRange)
}

func bucketFor(t sales.PaymentType) (Bucket, bool) {
	switch t {
	case sales.PaymentInstallment:
		return BucketInstallment, true
	case sales.PaymentSmallAdvance:
		return BucketSmallAdvance, true
	case sales.PaymentBigAdvance:
		return BucketBigAdvance, true
	case sales.PaymentFull, sales.PaymentPartial:
		return BucketFull, true
	case sales.PaymentInitial:
		return BucketPromise, true
	}
	// Refund and fee-collection rows have no revenue bucket.
	return "", false
}

func hasType(payments []sales.Payment, t sales.PaymentType) bool {
	for _, p := range payments {
		if p.Type == t {
			return true
		}
	}
	return false
}

// accumulator sums amounts per bucket, per batch and per parcel, splitting
// multi-parcel amounts into equal fractional shares.
type accumulator struct {
	parcels   map[int64]ParcelRef
	totals    map[Bucket]float64
	perParcel map[Bucket]map[int64]float64
	perBatch  map[Bucket]map[int64]float64
	batches   map[int64]string
}

func newAccumulator(parcels map[int64]ParcelRef) *accumulator {
	return &accumulator{
		parcels:   parcels,
		totals:    make(map[Bucket]float64),
		perParcel: make(map[Bucket]map[int64]float64),
		perBatch:  make(map[Bucket]map[int64]float64),
		batches:   make(map[int64]string),
	}
}

// Step 4: equal fractional attribution across the sale's parcels, summing
// per-batch totals by the share of parcels belonging to that batch.
func (a *accumulator) add(bucket Bucket, sale sales.Sale, amount float64) {
	n := sale.PieceCount()
	if n == 0 || amount == 0 {
		return
	}
	a.totals[bucket] += amount
	share := amount / float64(n)
	for _, parcelID := range sale.ParcelIDs {
		if a.perParcel[bucket] == nil {
			a.perParcel[bucket] = make(map[int64]float64)
		}
		a.perParcel[bucket][parcelID] += share

		ref := a.parcels[parcelID]
		if a.perBatch[bucket] == nil {
			a.perBatch[bucket] = make(map[int64]float64)
		}
		a.perBatch[bucket][ref.BatchID] += share
		a.batches[ref.BatchID] = ref.Location
	}
}

// Step 5: assemble the flat totals, the per-bucket location groups with
// parcel detail, the location summary and the grand total, all in a fixed
// order.
func (a *accumulator) report(dateRange shared.DateRange) *Report {
	report := &Report{
		Range:  dateRange,
		Totals: make(map[Bucket]float64, len(bucketOrder)),
	}

	for _, bucket := range bucketOrder {
		report.Totals[bucket] = a.totals[bucket]
		report.GrandTotal += a.totals[bucket]

		group := TypeGroup{Bucket: bucket, Total: a.totals[bucket]}
		batchIDs := sortedKeys(a.perBatch[bucket])
		for _, batchID := range batchIDs {
			breakdown := LocationBreakdown{
				BatchID:  batchID,
				Location: a.batches[batchID],
				Amount:   a.perBatch[bucket][batchID],
			}
			parcelIDs := sortedKeys(a.perParcel[bucket])
			for _, parcelID := range parcelIDs {
				ref := a.parcels[parcelID]
				if ref.BatchID != batchID {
					continue
				}
				breakdown.Parcels = append(breakdown.Parcels, ParcelAmount{
					ParcelID:     parcelID,
					ParcelNumber: ref.Number,
					Amount:       a.perParcel[bucket][parcelID],
				})
			}
			group.Locations = append(group.Locations, breakdown)
		}
		report.Groups = append(report.Groups, group)
	}

	for _, batchID := range sortedKeys(a.batches) {
		row := SummaryRow{
			BatchID:  batchID,
			Location: a.batches[batchID],
			Amounts:  make(map[Bucket]float64, len(bucketOrder)),
		}
		for _, bucket := range bucketOrder {
			amount := a.perBatch[bucket][batchID]
			row.Amounts[bucket] = amount
			row.Total += amount
		}
		report.Summary = append(report.Summary, row)
	}

	return report
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
