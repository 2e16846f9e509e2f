package catalog

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/db"
	"github.com/xenking/kart-checkout/internal/domain/geo"
)

func TestDecode_SeedCatalog(t *testing.T) {
	c, err := Decode(db.Catalog)
	require.NoError(t, err)

	require.Len(t, c.Businesses, 3)
	require.Len(t, c.Products, 5)

	first := c.Businesses[0]
	assert.Equal(t, "Dostyk Apparel", first.Name)
	assert.True(t, first.Located)
	assert.Equal(t, geo.Coordinates{Latitude: 43.2389, Longitude: 76.9578}, first.Location.Coords)
	assert.Equal(t, "050010", first.Location.PostCode)

	assert.False(t, c.Businesses[2].Located, "third business has no coordinates")

	shirt := c.Products[0]
	assert.Equal(t, "0f3b8c62-6f0e-4d0b-8a57-2c4a9d1e7b01", shirt.ID)
	assert.Equal(t, "CLOTHES", shirt.Category)
	assert.True(t, decimal.RequireFromString("45").Equal(shirt.Price))
	assert.Equal(t, 10, shirt.Discount)
	assert.Equal(t, first.ID, shirt.Business.ID)
}

func TestDecode_Invalid(t *testing.T) {
	const product = `{"id":"0f3b8c62-6f0e-4d0b-8a57-2c4a9d1e7b01","businessId":"b1","name":"Shirt","price":"1","category":"CLOTHES"}`

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "not an object",
			doc:  `[]`,
			want: "decode catalog",
		},
		{
			name: "unknown business",
			doc:  `{"businesses":[],"products":[` + product + `]}`,
			want: `unknown business "b1"`,
		},
		{
			name: "duplicate business",
			doc:  `{"businesses":[{"id":"b1"},{"id":"b1"}]}`,
			want: `duplicate business "b1"`,
		},
		{
			name: "half coordinates",
			doc:  `{"businesses":[{"id":"b1","location":{"latitude":1}}]}`,
			want: "latitude and longitude must be given together",
		},
		{
			name: "coordinates out of range",
			doc:  `{"businesses":[{"id":"b1","location":{"latitude":91,"longitude":0}}]}`,
			want: "out of range",
		},
		{
			name: "business without id",
			doc:  `{"businesses":[{"name":"x"}]}`,
			want: "missing id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeProduct(t *testing.T) {
	tests := []struct {
		name    string
		record  string
		wantErr string
		check   func(t *testing.T, price decimal.Decimal, images []string)
	}{
		{
			name:   "string price",
			record: `{"id":"2b8d3fa4-6c5e-4d9f-8a2b-7e4c3d1f9a03","businessId":"b","name":"Pastila","price":"8.50","discount":0,"category":"SWEETS","images":["a.jpg"],"extra":{"x":1}}`,
			check: func(t *testing.T, price decimal.Decimal, images []string) {
				assert.Equal(t, "8.5", price.String())
				assert.Equal(t, []string{"a.jpg"}, images)
			},
		},
		{
			name:   "numeric price",
			record: `{"id":"2b8d3fa4-6c5e-4d9f-8a2b-7e4c3d1f9a03","businessId":"b","name":"Pastila","price":12.25,"category":"SWEETS"}`,
			check: func(t *testing.T, price decimal.Decimal, images []string) {
				assert.Equal(t, "12.25", price.String())
				assert.Nil(t, images)
			},
		},
		{
			name:    "id not a uuid",
			record:  `{"id":"p1","businessId":"b","name":"x","price":"1","category":"SWEETS"}`,
			wantErr: "not a UUID",
		},
		{
			name:    "id not canonical",
			record:  `{"id":"2B8D3FA4-6C5E-4D9F-8A2B-7E4C3D1F9A03","businessId":"b","name":"x","price":"1","category":"SWEETS"}`,
			wantErr: "canonical form",
		},
		{
			name:    "missing business",
			record:  `{"id":"2b8d3fa4-6c5e-4d9f-8a2b-7e4c3d1f9a03","name":"x","price":"1","category":"SWEETS"}`,
			wantErr: "missing businessId",
		},
		{
			name:    "negative price",
			record:  `{"id":"2b8d3fa4-6c5e-4d9f-8a2b-7e4c3d1f9a03","businessId":"b","name":"x","price":"-1","category":"SWEETS"}`,
			wantErr: "negative price",
		},
		{
			name:    "discount out of range",
			record:  `{"id":"2b8d3fa4-6c5e-4d9f-8a2b-7e4c3d1f9a03","businessId":"b","name":"x","price":"1","discount":120,"category":"SWEETS"}`,
			wantErr: "discount 120 out of range",
		},
		{
			name:    "bad price",
			record:  `{"id":"2b8d3fa4-6c5e-4d9f-8a2b-7e4c3d1f9a03","businessId":"b","name":"x","price":"abc","category":"SWEETS"}`,
			wantErr: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeProduct(jx.DecodeStr(tt.record))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, p.Price, p.Images)
		})
	}
}
