package tui

import "lyricsync/internal/lyrics"

// DemoLines is a 22.5s timeline that exercises short, long and adjacent
// lines. It matches the simulated clock's default loop length.
var DemoLines = []lyrics.Line{
	{Start: 0, End: 1000, Text: "（Intro）"},
	{Start: 1200, End: 2300, Text: "当代码被点燃"},
	{Start: 2500, End: 3800, Text: "旋律在指尖流转"},
	{Start: 4000, End: 5000, Text: "第一个特效，启动"},

	{Start: 5500, End: 6800, Text: "看歌词，在中心旋转"},
	{Start: 7000, End: 8200, Text: "强烈的动感，一秒完成"},
	{Start: 8500, End: 9500, Text: "但律动，永不停止"},
	{Start: 9700, End: 10700, Text: "放大，又缩小"},

	{Start: 10900, End: 11600, Text: "终端的力量"},
	{Start: 11800, End: 12500, Text: "动画的战场"},
	{Start: 12700, End: 13600, Text: "每一个瞬间都精准捕捉"},
	{Start: 13800, End: 14700, Text: "状态与视图完美分离"},

	{Start: 15000, End: 16000, Text: "架构清晰"},
	{Start: 16200, End: 17200, Text: "通道驱动一切"},
	{Start: 17400, End: 18200, Text: "你的需求，我的实现"},
	{Start: 18400, End: 19000, Text: "（Chorus）"},

	{Start: 19200, End: 19800, Text: "视觉震撼"},
	{Start: 20000, End: 20600, Text: "体验升级"},
	{Start: 20800, End: 21500, Text: "完美的播放器"},
	{Start: 21700, End: 22500, Text: "（Outro）"},
}

// DemoCatalog returns DemoLines as a Catalog.
func DemoCatalog() *lyrics.Catalog {
	c, err := lyrics.NewCatalog(DemoLines)
	if err != nil {
		panic(err)
	}
	return c
}
