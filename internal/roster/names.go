package roster

var lastNames = []string{
	"佐藤", "鈴木", "高橋", "田中", "伊藤", "渡辺", "山本", "中村",
	"小林", "加藤", "吉田", "山田", "佐々木", "山口", "松本", "井上",
	"木村", "林", "斎藤", "清水",
}

var maleFirstNames = []string{
	"大翔", "蓮", "陽翔", "樹", "悠真", "湊", "颯太", "陸",
	"駿", "健太", "翔太", "拓海", "大和", "直樹", "亮太",
}

var femaleFirstNames = []string{
	"陽葵", "凛", "結菜", "芽依", "紬", "莉子", "美咲", "葵",
	"さくら", "優花", "七海", "愛莉", "真央", "彩花", "結衣",
}

var hobbyPool = []string{
	"サッカー", "読書", "ゲーム", "ピアノ", "イラスト", "野球",
	"ダンス", "料理", "釣り", "バスケットボール", "動画鑑賞",
	"水泳", "将棋", "アニメ", "音楽鑑賞",
}
