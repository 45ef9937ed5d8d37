package sequence_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/store/memory"
	"github.com/odyssey-erp/ledgercore/internal/testing/fixture"
)

func newGenerator(t *testing.T) (*sequence.Generator, uuid.UUID) {
	t.Helper()
	gen := sequence.NewGenerator(memory.New().Sequences(), nil)
	inst := uuid.New()
	_, err := gen.Configure(context.Background(), sequence.Counter{
		InstitutionID: inst,
		DocumentType:  sequence.TypeBill,
		Prefix:        "BILL-",
		Padding:       5,
	})
	require.NoError(t, err)
	return gen, inst
}

func TestAllocateReferenceFormatsAndIncrements(t *testing.T) {
	gen, inst := newGenerator(t)
	ctx := context.Background()

	first, err := gen.AllocateReference(ctx, inst, sequence.TypeBill, 1)
	require.NoError(t, err)
	second, err := gen.AllocateReference(ctx, inst, sequence.TypeBill, 1)
	require.NoError(t, err)
	require.Equal(t, "BILL-00001", first)
	require.Equal(t, "BILL-00002", second)
}

func TestAllocateReferenceNotConfigured(t *testing.T) {
	gen, inst := newGenerator(t)

	_, err := gen.AllocateReference(context.Background(), inst, sequence.TypeInvoice, 1)
	require.ErrorIs(t, err, sequence.ErrNotConfigured)
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))

	_, err = gen.AllocateReference(context.Background(), uuid.New(), sequence.TypeBill, 1)
	require.ErrorIs(t, err, sequence.ErrNotConfigured)

	_, err = gen.AllocateReference(context.Background(), inst, "bill", 1)
	require.True(t, shared.IsValidation(err))
}

func TestAllocateReferenceAuditsActor(t *testing.T) {
	fx := fixture.New(t)
	ctx := context.Background()

	_, err := fx.Sequences.AllocateReference(ctx, fx.Institution, sequence.TypeBill, 0)
	require.True(t, shared.IsValidation(err))

	ref, err := fx.Sequences.AllocateReference(ctx, fx.Institution, sequence.TypeBill, fx.Actor)
	require.NoError(t, err)
	require.Equal(t, "BILL-000001", ref)

	logs := fx.Audit.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, "sequence.allocate", logs[0].Action)
	require.Equal(t, fx.Actor, logs[0].ActorID)
	require.Equal(t, sequence.TypeBill, logs[0].EntityID)
	require.Equal(t, ref, logs[0].Meta["reference"])

	// a failed allocation leaves no audit trail
	_, err = fx.Sequences.AllocateReference(ctx, fx.Institution, "PAYSLIP", fx.Actor)
	require.ErrorIs(t, err, sequence.ErrNotConfigured)
	require.Len(t, fx.Audit.Logs(), 1)
}

func TestConfigureTwiceConflicts(t *testing.T) {
	gen, inst := newGenerator(t)
	_, err := gen.Configure(context.Background(), sequence.Counter{InstitutionID: inst, DocumentType: sequence.TypeBill, Prefix: "B"})
	require.ErrorIs(t, err, sequence.ErrAlreadyConfigured)
	require.False(t, shared.IsRetryable(err))
}

func TestConcurrentAllocationIsGapFree(t *testing.T) {
	gen, inst := newGenerator(t)
	ctx := context.Background()

	const callers = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		refs []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := gen.AllocateReference(ctx, inst, sequence.TypeBill, 1)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			refs = append(refs, ref)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, refs, callers)
	sort.Strings(refs)
	for i, ref := range refs {
		require.Equal(t, (sequence.Counter{Prefix: "BILL-", Padding: 5}).Format(int64(i+1)), ref)
	}
}
