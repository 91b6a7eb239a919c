// Package report 用运行结果生成 HTML 回测报告：权益曲线和回撤曲线。
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"khquant/internal/market"
	"khquant/internal/record"
)

const (
	chartWidth  = "1400px"
	chartHeight = "420px"
)

// Generate 读取一次运行的快照序列并渲染 HTML 报告到 path。
func Generate(store *record.Store, runID, path string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return fmt.Errorf("读取运行记录失败: %w", err)
	}
	snaps, err := store.ListSnapshots(runID)
	if err != nil {
		return fmt.Errorf("读取快照失败: %w", err)
	}
	if len(snaps) == 0 {
		return fmt.Errorf("运行 %s 没有任何快照", runID)
	}

	xAxis := make([]string, len(snaps))
	equity := make([]opts.LineData, len(snaps))
	drawdown := make([]opts.LineData, len(snaps))
	for i, s := range snaps {
		xAxis[i] = time.UnixMilli(s.Timestamp).In(market.CST).Format("2006-01-02 15:04")
		equity[i] = opts.LineData{Value: s.TotalAsset}
		drawdown[i] = opts.LineData{Value: -s.Drawdown * 100}
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		equityChart(run, xAxis, equity),
		drawdownChart(xAxis, drawdown),
	)

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func equityChart(run *record.RunModel, xAxis []string, equity []opts.LineData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("权益曲线 %s", run.RunID),
			Subtitle: fmt.Sprintf("收益率 %.2f%%  最大回撤 %.2f%%  成交 %d 笔",
				run.TotalReturn*100, run.MaxDrawdown*100, run.TradeCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("总资产", equity, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func drawdownChart(xAxis []string, drawdown []opts.LineData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "回撤 (%)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("回撤", drawdown,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.3)}),
	)
	return line
}
