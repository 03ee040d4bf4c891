package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"eve-trade-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const typesCSV = `typeID,groupID,typeName,description,mass,volume,capacity,portionSize,raceID,basePrice,published,marketGroupID,iconID,soundID,graphicID
34,18,Tritanium,"The most common ore type",0,0.01,0,1,,2,1,1857,22,,21
35,18,Pyerite,"Another ore",0,0.01,0,1,,8,1,1857,22,,21
36,18,Mexallon,"Unpublished test row",0,0.01,0,1,,32,0,1857,22,,21
bogus,18,Broken,"Unparseable id",0,0.01,0,1,,0,1,,,,
`

func setupDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ItemType{}))
	return db
}

func TestImporterRun(t *testing.T) {
	// Arrange
	db := setupDB(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(typesCSV))
	}))
	defer server.Close()

	importer := NewImporter(zap.NewNop(), db, server.URL)

	// Act
	imported, err := importer.Run(context.Background())

	// Assert: three parseable rows land, the bogus one is skipped.
	require.NoError(t, err)
	assert.Equal(t, 3, imported)

	var tritanium models.ItemType
	require.NoError(t, db.Where("type_id = ?", 34).First(&tritanium).Error)
	assert.Equal(t, "Tritanium", tritanium.Name)
	assert.True(t, tritanium.Published)

	var mexallon models.ItemType
	require.NoError(t, db.Where("type_id = ?", 36).First(&mexallon).Error)
	assert.False(t, mexallon.Published)
}

func TestImporterRerunUpdatesInPlace(t *testing.T) {
	// Arrange: a stale name already in the catalog.
	db := setupDB(t)
	require.NoError(t, db.Create(&models.ItemType{TypeID: 34, Name: "Old Name", Published: false}).Error)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(typesCSV))
	}))
	defer server.Close()

	importer := NewImporter(zap.NewNop(), db, server.URL)

	// Act
	_, err := importer.Run(context.Background())

	// Assert: updated, not duplicated.
	require.NoError(t, err)

	var count int64
	db.Model(&models.ItemType{}).Where("type_id = ?", 34).Count(&count)
	assert.Equal(t, int64(1), count)

	var row models.ItemType
	require.NoError(t, db.Where("type_id = ?", 34).First(&row).Error)
	assert.Equal(t, "Tritanium", row.Name)
	assert.True(t, row.Published)
}

func TestImporterServerError(t *testing.T) {
	// Arrange
	db := setupDB(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	importer := NewImporter(zap.NewNop(), db, server.URL)

	// Act
	_, err := importer.Run(context.Background())

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download item catalog")
}
