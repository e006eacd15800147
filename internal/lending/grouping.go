package lending

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/erazemk/nycklar/internal/model"
)

// Sentinel group keys. Holder codes cannot start with HolderCodeReserved,
// so the unknown holder group never merges with a real holder.
const (
	HolderCodeReserved = "~"
	UnknownHolderKey   = HolderCodeReserved + "unknown"
	NeverLoanedKey   = "never-loaned"
)

// GroupedView is the sectioned presentation of a key collection.
type GroupedView struct {
	Loaned   []HolderGroup   `json:"loaned"`
	Unloaned []UnloanedGroup `json:"unloaned"`
	Disposed []model.Key     `json:"disposed"`
}

// HolderGroup collects the active loans of one holder.
type HolderGroup struct {
	Key        string      `json:"key"`
	HolderCode string      `json:"holder_code,omitempty"`
	Loans      []LoanGroup `json:"loans"`
}

// LoanGroup collects the keys out on one loan.
type LoanGroup struct {
	Key  string      `json:"key"`
	Loan model.Loan  `json:"loan"`
	Keys []model.Key `json:"keys"`
}

// UnloanedGroup collects keys that came back on the same loan, or keys
// that were never loaned when PreviousLoan is nil.
type UnloanedGroup struct {
	Key          string      `json:"key"`
	PreviousLoan *model.Loan `json:"previous_loan,omitempty"`
	Keys         []model.Key `json:"keys"`
}

// placed is a key together with the loan that decides its group.
type placed struct {
	key  model.Key
	loan *model.Loan
}

// Group sorts keys into sections.
//
// Keys with an active loan go to Loaned, grouped by holder and then by loan.
// Other keys go to Unloaned, grouped by the loan they last came back on.
// Disposed keys are the exception: when not on loan they are listed under
// Disposed instead of Unloaned, while a disposed key still out on loan stays
// in Loaned. Group keys depend only on holder codes and loan ids, so they
// survive recomputation.
func Group(keys []model.Key) GroupedView {
	order := newKeyOrder()
	byKey := func(a, b placed) int { return order.compare(a.key, b.key) }

	var loaned, unloaned []placed
	disposed := []model.Key{}

	for _, k := range keys {
		if active := ActiveLoan(k.Loans); active != nil {
			loaned = append(loaned, placed{key: k, loan: active})
			continue
		}
		if k.Disposed {
			disposed = append(disposed, k)
			continue
		}
		unloaned = append(unloaned, placed{key: k, loan: PreviousLoan(k.Loans)})
	}

	view := GroupedView{
		Loaned:   []HolderGroup{},
		Unloaned: []UnloanedGroup{},
		Disposed: disposed,
	}

	holders := Partition(loaned, func(p placed) string { return holderKey(p.loan) }, compareHolders, nil)
	for _, h := range holders {
		hg := HolderGroup{
			Key:        h.Key,
			HolderCode: strings.TrimSpace(h.Items[0].loan.HolderCode),
			Loans:      []LoanGroup{},
		}

		loans := Partition(h.Items, func(p placed) int64 { return p.loan.ID }, compareNewestLoan, byKey)
		for _, l := range loans {
			hg.Loans = append(hg.Loans, LoanGroup{
				Key:  h.Key + ":loan-" + strconv.FormatInt(l.Key, 10),
				Loan: *l.Items[0].loan,
				Keys: keysOf(l.Items),
			})
		}
		view.Loaned = append(view.Loaned, hg)
	}

	returned := Partition(unloaned, returnedKey, compareLatestReturn, byKey)
	for _, g := range returned {
		view.Unloaned = append(view.Unloaned, UnloanedGroup{
			Key:          g.Key,
			PreviousLoan: g.Items[0].loan,
			Keys:         keysOf(g.Items),
		})
	}

	slices.SortStableFunc(view.Disposed, order.compare)
	return view
}

func holderKey(loan *model.Loan) string {
	code := strings.TrimSpace(loan.HolderCode)
	if code == "" {
		return UnknownHolderKey
	}
	return code
}

func returnedKey(p placed) string {
	if p.loan == nil {
		return NeverLoanedKey
	}
	return "returned-" + strconv.FormatInt(p.loan.ID, 10)
}

// compareHolders orders holder groups by code, unknown holders last.
func compareHolders(a, b Bucket[string, placed]) int {
	switch {
	case a.Key == b.Key:
		return 0
	case a.Key == UnknownHolderKey:
		return 1
	case b.Key == UnknownHolderKey:
		return -1
	default:
		return cmp.Compare(a.Key, b.Key)
	}
}

// compareNewestLoan orders loan groups by creation time, newest first.
func compareNewestLoan(a, b Bucket[int64, placed]) int {
	return b.Items[0].loan.CreatedAt.Compare(a.Items[0].loan.CreatedAt)
}

// compareLatestReturn puts never-loaned keys first, then groups by return
// time, most recent first.
func compareLatestReturn(a, b Bucket[string, placed]) int {
	la, lb := a.Items[0].loan, b.Items[0].loan
	switch {
	case la == nil && lb == nil:
		return 0
	case la == nil:
		return -1
	case lb == nil:
		return 1
	}
	return returnedAt(lb).Compare(returnedAt(la))
}

func returnedAt(l *model.Loan) (t time.Time) {
	if l.ReturnedAt != nil {
		t = *l.ReturnedAt
	}
	return t
}

func keysOf(items []placed) []model.Key {
	keys := make([]model.Key, len(items))
	for i, p := range items {
		keys[i] = p.key
	}
	return keys
}

// GroupBy partitions keys on a single attribute. Groups are ordered by
// their key under the same collation as key names and the keys inside
// each group are in display order.
func GroupBy(keys []model.Key, selector func(model.Key) string) []Bucket[string, model.Key] {
	order := newKeyOrder()
	byName := func(a, b Bucket[string, model.Key]) int {
		return order.col.CompareString(a.Key, b.Key)
	}
	return Partition(keys, selector, byName, order.compare)
}

// ByRentalObject selects the rental object code of a key.
func ByRentalObject(k model.Key) string { return k.RentalObjectCode }

// ByType selects the type code of a key.
func ByType(k model.Key) string { return k.Type }

// Fingerprint returns a digest of every key and loan field a grouped view
// shows, in input order. Callers compare fingerprints to discard results computed from a
// snapshot that has since been replaced.
func Fingerprint(keys []model.Key) string {
	h := xxhash.New()
	for _, k := range keys {
		writeField(h, strconv.FormatInt(k.ID, 10))
		writeField(h, k.Name)
		writeField(h, k.Kind)
		writeField(h, k.Type)
		writeField(h, k.LatestEvent)
		writeField(h, k.RentalObjectCode)
		writeField(h, strconv.FormatBool(k.Disposed))
		if k.SequenceNumber != nil {
			writeField(h, strconv.Itoa(*k.SequenceNumber))
		} else {
			writeField(h, "-")
		}
		for _, l := range k.Loans {
			writeField(h, strconv.FormatInt(l.ID, 10))
			writeField(h, l.HolderCode)
			writeField(h, l.SecondaryHolderCode)
			writeField(h, l.Kind)
			writeField(h, l.Notes)
			writeField(h, formatTime(&l.CreatedAt))
			writeField(h, formatTime(l.PickedUpAt))
			writeField(h, formatTime(l.ReturnedAt))
			writeField(h, formatTime(l.AvailableToNextTenantFrom))
		}
		writeField(h, "|")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func writeField(h *xxhash.Digest, s string) {
	h.WriteString(s)
	h.WriteString("\x00")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}
