// Package ledger implements FIFO cost accounting over the order ledger. The
// pure matching algorithm lives in Matcher and operates on in-memory lots;
// Service wraps it with persistence, per-trader serialization and one
// transaction per run.
package ledger

import (
	"sort"
	"time"

	"eve-trade-ledger/internal/fees"
	"github.com/shopspring/decimal"
)

// Rates holds the fee percentages snapshotted for one matching run. A rate
// change affects only future runs; past profit records are never recomputed.
type Rates struct {
	AcquisitionFeePercent float64 // broker fee on buy orders
	DisposalFeePercent    float64 // broker fee on sell orders
	TaxPercent            float64 // sales tax on sell revenue
}

// Order is the slice of a ledger row the matcher needs.
type Order struct {
	OrderID         int64
	TypeID          int32
	IsBuyOrder      bool
	IssuedAt        time.Time
	Price           float64
	VolumeEffective int64
}

// Lot is an in-memory inventory lot. StoreID is the persisted primary key,
// zero for lots created during the current run.
type Lot struct {
	StoreID         uint
	TypeID          int32
	Quantity        int64
	PurchasePrice   float64
	PurchaseOrderID int64
	PurchaseDate    time.Time
	AcquisitionFee  float64
	seq             int
}

// Allocation is one profit record produced by matching a sell order against
// a lot. SourceLotOrderID is nil for the terminal record of a sell that
// exceeded all available inventory.
type Allocation struct {
	TypeID              int32
	SellOrderID         int64
	SellDate            time.Time
	Quantity            int64
	PurchasePrice       float64
	SellPrice           float64
	AcquisitionFeeShare float64
	DisposalFee         float64
	Tax                 float64
	GrossProfit         float64
	NetProfit           float64
	SourceLotOrderID    *int64
}

// Matcher consumes orders in chronological sequence and maintains the FIFO
// lot state for one trader. It is not safe for concurrent use.
type Matcher struct {
	rates    Rates
	lots     map[int32][]*Lot
	consumed []*Lot
	seq      int
}

// NewMatcher creates a matcher seeded with the trader's open lots. The seed
// order defines the tie-break between lots sharing a purchase date, so
// callers must supply lots ordered by (purchase_date, creation order).
func NewMatcher(rates Rates, open []Lot) *Matcher {
	m := &Matcher{
		rates: rates,
		lots:  make(map[int32][]*Lot),
	}
	for _, l := range open {
		lot := l
		lot.seq = m.seq
		m.seq++
		m.lots[lot.TypeID] = append(m.lots[lot.TypeID], &lot)
	}
	return m
}

// ProcessBuy turns a filled buy order into a new inventory lot. It returns
// nil for orders that never filled (zero effective volume).
func (m *Matcher) ProcessBuy(o Order) *Lot {
	if o.VolumeEffective <= 0 {
		return nil
	}

	lot := &Lot{
		TypeID:          o.TypeID,
		Quantity:        o.VolumeEffective,
		PurchasePrice:   o.Price,
		PurchaseOrderID: o.OrderID,
		PurchaseDate:    o.IssuedAt,
		AcquisitionFee: fees.RoundISK(
			fees.AcquisitionFee(o.Price, o.VolumeEffective, m.rates.AcquisitionFeePercent)),
		seq: m.seq,
	}
	m.seq++

	queue := append(m.lots[o.TypeID], lot)
	// Lots from a prior run may carry later purchase dates than a freshly
	// ingested old buy, so keep the queue sorted rather than assuming
	// append order.
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].PurchaseDate.Equal(queue[j].PurchaseDate) {
			return queue[i].seq < queue[j].seq
		}
		return queue[i].PurchaseDate.Before(queue[j].PurchaseDate)
	})
	m.lots[o.TypeID] = queue

	return lot
}

// ProcessSell matches a filled sell order against the oldest lots of its
// type and returns one allocation per consumed lot. If inventory runs out, a
// terminal allocation with zero purchase price and a nil source lot records
// the remainder as sold without tracked purchase. Orders with zero effective
// volume yield no allocations.
func (m *Matcher) ProcessSell(o Order) []Allocation {
	remaining := o.VolumeEffective
	if remaining <= 0 {
		return nil
	}

	var allocations []Allocation

	for remaining > 0 {
		queue := m.lots[o.TypeID]
		if len(queue) == 0 {
			break
		}
		lot := queue[0]

		qty := remaining
		if lot.Quantity < qty {
			qty = lot.Quantity
		}

		allocations = append(allocations, m.allocate(o, lot, qty))

		lot.Quantity -= qty
		remaining -= qty
		if lot.Quantity == 0 {
			m.lots[o.TypeID] = queue[1:]
			m.consumed = append(m.consumed, lot)
		}
	}

	if remaining > 0 {
		// Inventory acquired before tracking began: revenue with no cost
		// base, so the "profit" is just the negated fees.
		disposalFee := fees.DisposalFee(o.Price, remaining, m.rates.DisposalFeePercent)
		tax := fees.Tax(o.Price, remaining, m.rates.TaxPercent)
		allocations = append(allocations, Allocation{
			TypeID:      o.TypeID,
			SellOrderID: o.OrderID,
			SellDate:    o.IssuedAt,
			Quantity:    remaining,
			SellPrice:   o.Price,
			DisposalFee: fees.RoundISK(disposalFee),
			Tax:         fees.RoundISK(tax),
			NetProfit:   fees.RoundISK(disposalFee.Add(tax).Neg()),
		})
	}

	return allocations
}

// allocate computes the profit figures for consuming qty units of lot.
func (m *Matcher) allocate(o Order, lot *Lot, qty int64) Allocation {
	qtyDec := decimal.NewFromInt(qty)

	costBase := decimal.NewFromFloat(lot.PurchasePrice).Mul(qtyDec)
	revenueBase := decimal.NewFromFloat(o.Price).Mul(qtyDec)

	// The fee share divides by the lot's current remaining quantity, which
	// matches the historical books this ledger replaces. See DESIGN.md for
	// the audit note on repeated partial consumption.
	feeShare := decimal.NewFromFloat(lot.AcquisitionFee).
		Mul(qtyDec).
		Div(decimal.NewFromInt(lot.Quantity))

	disposalFee := fees.DisposalFee(o.Price, qty, m.rates.DisposalFeePercent)
	tax := fees.Tax(o.Price, qty, m.rates.TaxPercent)

	gross := revenueBase.Sub(costBase)
	net := revenueBase.Sub(disposalFee).Sub(tax).Sub(costBase.Add(feeShare))

	sourceOrderID := lot.PurchaseOrderID
	return Allocation{
		TypeID:              o.TypeID,
		SellOrderID:         o.OrderID,
		SellDate:            o.IssuedAt,
		Quantity:            qty,
		PurchasePrice:       lot.PurchasePrice,
		SellPrice:           o.Price,
		AcquisitionFeeShare: fees.RoundISK(feeShare),
		DisposalFee:         fees.RoundISK(disposalFee),
		Tax:                 fees.RoundISK(tax),
		GrossProfit:         fees.RoundISK(gross),
		NetProfit:           fees.RoundISK(net),
		SourceLotOrderID:    &sourceOrderID,
	}
}

// OpenLots returns the surviving lots in FIFO order across all types.
func (m *Matcher) OpenLots() []Lot {
	var out []*Lot
	for _, queue := range m.lots {
		out = append(out, queue...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })

	lots := make([]Lot, len(out))
	for i, l := range out {
		lots[i] = *l
	}
	return lots
}

// ConsumedLots returns the lots fully consumed during this run.
func (m *Matcher) ConsumedLots() []Lot {
	lots := make([]Lot, len(m.consumed))
	for i, l := range m.consumed {
		lots[i] = *l
	}
	return lots
}
