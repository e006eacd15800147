package lending

import (
	"time"

	"github.com/erazemk/nycklar/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func newKey(id int64, name, keyType string, loans ...model.Loan) model.Key {
	return model.Key{ID: id, Name: name, Kind: model.KeyKindKey, Type: keyType, Loans: loans}
}

func activeLoan(id int64, holder string, created time.Time) model.Loan {
	return model.Loan{ID: id, HolderCode: holder, Kind: model.LoanKindTenant, CreatedAt: created, PickedUpAt: ptr(created)}
}

func returnedLoan(id int64, holder string, created, returned time.Time) model.Loan {
	return model.Loan{ID: id, HolderCode: holder, Kind: model.LoanKindTenant, CreatedAt: created, PickedUpAt: ptr(created), ReturnedAt: ptr(returned)}
}

func ids(keys []model.Key) []int64 {
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i] = k.ID
	}
	return out
}
