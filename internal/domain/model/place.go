package model

import (
	"strconv"
	"strings"
)

// LatLng 緯度経度を表す基本的な型
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place Nearby Search APIが返す飲食店レコード
// PlaceID が重複排除のキー。その他の属性はそのままCSVへ出力する
type Place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Vicinity         string   `json:"vicinity"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Types            []string `json:"types"`
	BusinessStatus   string   `json:"business_status"`
}

// ToLatLng Placeの位置情報をLatLng型に変換
func (p *Place) ToLatLng() LatLng {
	return LatLng{Lat: p.Lat, Lng: p.Lng}
}

// PlaceCSVHeader CSV出力のヘッダー行
func PlaceCSVHeader() []string {
	return []string{
		"place_id", "name", "vicinity", "lat", "lng",
		"rating", "user_ratings_total", "types", "business_status",
	}
}

// CSVRecord CSVの1行に変換する
func (p *Place) CSVRecord() []string {
	return []string{
		p.PlaceID,
		p.Name,
		p.Vicinity,
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lng, 'f', -1, 64),
		strconv.FormatFloat(p.Rating, 'f', -1, 64),
		strconv.Itoa(p.UserRatingsTotal),
		strings.Join(p.Types, "|"),
		p.BusinessStatus,
	}
}

// PlaceFromCSVRecord CSVの1行からPlaceを復元する
func PlaceFromCSVRecord(record []string) (*Place, error) {
	if len(record) < 9 {
		return nil, ErrInvalidCSVRecord
	}

	lat, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return nil, err
	}
	lng, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return nil, err
	}
	rating, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return nil, err
	}
	ratingsTotal, err := strconv.Atoi(record[6])
	if err != nil {
		return nil, err
	}

	var types []string
	if record[7] != "" {
		types = strings.Split(record[7], "|")
	}

	return &Place{
		PlaceID:          record[0],
		Name:             record[1],
		Vicinity:         record[2],
		Lat:              lat,
		Lng:              lng,
		Rating:           rating,
		UserRatingsTotal: ratingsTotal,
		Types:            types,
		BusinessStatus:   record[8],
	}, nil
}
