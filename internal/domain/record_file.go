package domain

// RecordFile 是扫描得到的一个记录文件。
type RecordFile struct {
	AbsPath string
	RelPath string // 相对扫描根目录
	Base    string // 不含扩展名的文件名
	Ext     string // 小写，带 '.'
	Size    int64
}
