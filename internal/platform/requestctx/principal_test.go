package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrincipalFromContextRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{SubjectID: "staff-1", Role: "ADMIN"})

	got, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, Principal{SubjectID: "staff-1", Role: "ADMIN"}, got)
	require.Equal(t, "staff-1", SubjectIDFromContext(ctx))
}

func TestPrincipalFromContextEmpty(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	require.False(t, ok)
	require.Empty(t, SubjectIDFromContext(context.Background()))
}

func TestPrincipalFromContextNil(t *testing.T) {
	_, ok := PrincipalFromContext(nil)
	require.False(t, ok)
}

func TestPrincipalWithoutSubjectIsIgnored(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{Role: "ADMIN"})
	_, ok := PrincipalFromContext(ctx)
	require.False(t, ok)
}

func TestWithPrincipalNilContext(t *testing.T) {
	ctx := WithPrincipal(nil, Principal{SubjectID: "client-9"})
	require.NotNil(t, ctx)
	require.Equal(t, "client-9", SubjectIDFromContext(ctx))
}
