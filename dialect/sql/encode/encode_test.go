package encode

import (
	"testing"
	"time"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "'hello'", String("hello", dialect.Postgres))
	assert.Equal(t, `'it\'s'`, String("it's", dialect.MySQL))
	assert.Equal(t, "'it''s'", String("it's", dialect.Postgres))
	assert.Equal(t, "'it''s'", String("it's", dialect.SQLite))
}

func TestBool(t *testing.T) {
	assert.Equal(t, "TRUE", Bool(true))
	assert.Equal(t, "FALSE", Bool(false))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "42", Number(42))
	assert.Equal(t, "42", Number(int64(42)))
	assert.Equal(t, "1.5", Number(1.5))
}

func TestDecimal(t *testing.T) {
	assert.Equal(t, "'1.50'::numeric", Decimal("1.50", dialect.Postgres))
	assert.Equal(t, "'1.50'", Decimal("1.50", dialect.MySQL))
}

func TestDate(t *testing.T) {
	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "'2024-03-15'::date", Date(d, dialect.Postgres))
	assert.Equal(t, "'2024-03-15'", Date(d, dialect.SQLite))
}

func TestDateTime(t *testing.T) {
	dt := time.Date(2024, 3, 15, 10, 30, 0, 500_000_000, time.UTC)
	assert.Equal(t, "'2024-03-15 10:30:00.500'::timestamp", DateTime(dt, dialect.Postgres))
	assert.Equal(t, "'2024-03-15 10:30:00.500'", DateTime(dt, dialect.MySQL))
	assert.Equal(t, "'2024-03-15T10:30:00.500Z'", DateTime(dt, dialect.SQLite))
}

func TestLike(t *testing.T) {
	assert.Equal(t, "'%john%'", Like("'john'", true, true))
	assert.Equal(t, "'john%'", Like("'john'", false, true))
	assert.Equal(t, "'%john'", Like("'john'", true, false))
}

func TestWrapInArray(t *testing.T) {
	assert.Equal(t, "'{1,2,3}'", WrapInArray("1,2,3"))
}

func TestIMode(t *testing.T) {
	assert.Equal(t, "LOWER(name)", IMode("name", true))
	assert.Equal(t, "name", IMode("name", false))
}

func TestValueArray(t *testing.T) {
	ft := catalog.ArrayOf(catalog.Scalar(catalog.ScalarInt))
	got := Value([]any{1, 2, 3}, ft, false, dialect.Postgres)
	assert.Equal(t, "array[1, 2, 3]", got)
}

func TestValueOptionalNull(t *testing.T) {
	got := Value(nil, catalog.Scalar(catalog.ScalarString), true, dialect.Postgres)
	assert.Equal(t, "NULL", got)
}

func TestArrayArgDateTimeOmitsQuoting(t *testing.T) {
	dt := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	got := ArrayArg(dt, catalog.Scalar(catalog.ScalarDateTime), false, dialect.Postgres)
	assert.Equal(t, "2024-03-15 10:30:00.000", got)
}
