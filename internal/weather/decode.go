package weather

import (
	"encoding/json"
	"net/http"
)

type archiveResponse struct {
	Daily struct {
		TemperatureMax     []float64 `json:"temperature_2m_max"`
		TemperatureMin     []float64 `json:"temperature_2m_min"`
		PrecipitationSum   []float64 `json:"precipitation_sum"`
		SunshineDurationS  []float64 `json:"sunshine_duration"`
	} `json:"daily"`
}

func decodeDailySeries(resp *http.Response) (*DailySeries, error) {
	var body archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	sunHours := make([]float64, len(body.Daily.SunshineDurationS))
	for i, s := range body.Daily.SunshineDurationS {
		sunHours[i] = s / 3600.0
	}

	return &DailySeries{
		TempMaxC:      body.Daily.TemperatureMax,
		TempMinC:      body.Daily.TemperatureMin,
		RainfallMM:    body.Daily.PrecipitationSum,
		SunshineHours: sunHours,
	}, nil
}
