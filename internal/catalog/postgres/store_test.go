package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/confluence-collector/internal/catalog"
)

func TestEntitiesQueriesByFilter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("FROM catalog_entities").
		WithArgs(catalog.KindResource, catalog.TypeConfluenceSpaces, "example.com/spaces").
		WillReturnRows(pgxmock.NewRows([]string{"name", "spaces"}).
			AddRow("eng-wiki", "Eng, Sales").
			AddRow("mkt-wiki", "Marketing"))

	entities, err := store.Entities(context.Background(), catalog.SpacesFilter("example.com/spaces"))
	require.NoError(t, err)
	require.Len(t, entities, 2)
	require.Equal(t, "eng-wiki", entities[0].Metadata.Name)
	require.Equal(t, "Eng, Sales", entities[0].Metadata.Annotations["example.com/spaces"])
	require.Equal(t, catalog.KindResource, entities[1].Kind)
	require.Equal(t, "Marketing", entities[1].Metadata.Annotations["example.com/spaces"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitiesWrapsQueryErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "entities")
	require.NoError(t, err)

	mock.ExpectQuery("FROM entities").
		WithArgs(catalog.KindResource, catalog.TypeConfluenceSpaces, "k").
		WillReturnError(errors.New("connection reset"))

	_, err = store.Entities(context.Background(), catalog.SpacesFilter("k"))
	require.ErrorContains(t, err, "query catalog entities: connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitiesRequiresAnnotationKey(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	_, err = store.Entities(context.Background(), catalog.Filter{Kind: catalog.KindResource})
	require.Error(t, err)
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "entities; DROP TABLE x")
	require.Error(t, err)
	_, err = NewWithPool(nil, "")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.ErrorContains(t, err, "catalog.dsn")
}
