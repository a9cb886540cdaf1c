package api

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"launch-dashboard/pkg/platform"
)

var funcMap = template.FuncMap{
	"fmtKg": platform.FormatMark,
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(funcMap).Parse(dashboardHTML))

type dashboardPage struct {
	Title   string
	Sites   []SiteOption
	Min     float64
	Max     float64
	Step    float64
	Marks   []platform.Mark
	Low     float64
	High    float64
	Records int
	Source  string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	lo, hi := s.ds.PayloadBounds()
	sliderMin, sliderMax := s.sliderBounds()
	page := dashboardPage{
		Title:   s.dashboard.Title,
		Sites:   s.siteOptions(),
		Min:     sliderMin,
		Max:     sliderMax,
		Step:    s.dashboard.Slider.Step,
		Marks:   s.dashboard.Slider.SortedMarks(),
		Low:     lo,
		High:    hi,
		Records: s.ds.Len(),
		Source:  s.info.Source,
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, page); err != nil {
		log.Error().Err(err).Msg("Template error")
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 0 auto; max-width: 1100px; padding: 16px; color: #503D36; }
    h1 { text-align: center; font-size: 40px; }
    .controls { display: flex; flex-direction: column; gap: 12px; margin-bottom: 16px; }
    .range { display: flex; align-items: center; gap: 12px; }
    .range input[type=number] { width: 90px; }
    .chart { min-height: 200px; border: 1px solid #e5e7eb; margin-bottom: 16px; display: flex; justify-content: center; align-items: center; }
    .chart img { max-width: 100%; }
    .empty { color: #9ca3af; }
    footer { font-size: 12px; color: #9ca3af; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>

  <div class="controls">
    <label for="site-dropdown">Launch Site</label>
    <select id="site-dropdown">
      {{range .Sites}}<option value="{{.Value}}">{{.Label}}</option>
      {{end}}
    </select>
  </div>

  <div class="chart" id="success-pie-chart"><span class="empty">No data</span></div>

  <div class="controls">
    <label>Payload range (Kg):</label>
    <div class="range">
      <input type="number" id="payload-low" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Low}}">
      <input type="range" id="payload-slider-low" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Low}}" list="payload-marks">
      <input type="range" id="payload-slider-high" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.High}}" list="payload-marks">
      <input type="number" id="payload-high" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.High}}">
    </div>
    <datalist id="payload-marks">
      {{range .Marks}}<option value="{{.Value}}" label="{{.Label}}"></option>
      {{end}}
    </datalist>
  </div>

  <div class="chart" id="success-payload-scatter-chart"><span class="empty">No data</span></div>

  <footer>{{.Records}} launches from {{.Source}} · payload {{fmtKg .Low}}–{{fmtKg .High}} kg</footer>

  <script>
    const site = document.getElementById("site-dropdown");
    const low = document.getElementById("payload-low");
    const high = document.getElementById("payload-high");
    const sliderLow = document.getElementById("payload-slider-low");
    const sliderHigh = document.getElementById("payload-slider-high");

    function show(pane, url) {
      fetch(url).then(function (resp) {
        const el = document.getElementById(pane);
        if (resp.status === 204) {
          el.innerHTML = '<span class="empty">No data</span>';
          return;
        }
        return resp.blob().then(function (blob) {
          el.innerHTML = "";
          const img = document.createElement("img");
          img.src = URL.createObjectURL(blob);
          el.appendChild(img);
        });
      });
    }

    function refresh() {
      const q = new URLSearchParams({ site: site.value });
      show("success-pie-chart", "/api/v1/charts/pie.svg?" + q);
      q.set("low", low.value);
      q.set("high", high.value);
      show("success-payload-scatter-chart", "/api/v1/charts/scatter.svg?" + q);
    }

    function sync(from, to) {
      from.addEventListener("input", function () { to.value = from.value; refresh(); });
    }
    sync(low, sliderLow); sync(sliderLow, low);
    sync(high, sliderHigh); sync(sliderHigh, high);
    site.addEventListener("change", refresh);
    refresh();
  </script>
</body>
</html>
`
