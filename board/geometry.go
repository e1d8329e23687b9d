// Package board 把线性格子编号映射到矩形棋盘外圈的二维坐标。
//
// 从左上角开始顺时针走一圈：上边从左到右，右边从上到下，下边从右到左，左边从下到上。
// 四个角各只算一次，所以格子总数是 2*width + 2*height - 4。
package board

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("棋盘尺寸非法")
	ErrOutOfRange    = errors.New("格子不在棋盘外圈上")
)

// Coordinate X 为列，Y 为行，(0,0) 是左上角
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Side string

const (
	SideTop    Side = "top"
	SideRight  Side = "right"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
)

// 实际用过的几种棋盘
var (
	Classic = Dimensions{Width: 5, Height: 5}   // 16 格
	Large   = Dimensions{Width: 16, Height: 15} // 58 格
	Square  = Dimensions{Width: 17, Height: 17} // 64 格
)

type Dimensions struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Geometry 无状态，只依赖宽高
type Geometry struct {
	width  int
	height int
}

func New(width, height int) (*Geometry, error) {
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("%w: width=%d height=%d", ErrConfiguration, width, height)
	}
	return &Geometry{width: width, height: height}, nil
}

func FromDimensions(d Dimensions) (*Geometry, error) {
	return New(d.Width, d.Height)
}

func (g *Geometry) Width() int  { return g.width }
func (g *Geometry) Height() int { return g.height }

func (g *Geometry) Size() int {
	return 2*g.width + 2*g.height - 4
}

// 各边起点的编号（右上、右下、左下三个角）
func (g *Geometry) corners() (topRight, bottomRight, bottomLeft int) {
	topRight = g.width - 1
	bottomRight = topRight + g.height - 1
	bottomLeft = bottomRight + g.width - 1
	return
}

func (g *Geometry) ToCoordinate(index int) (Coordinate, error) {
	if index < 0 || index >= g.Size() {
		return Coordinate{}, fmt.Errorf("%w: index=%d size=%d", ErrOutOfRange, index, g.Size())
	}
	topRight, bottomRight, bottomLeft := g.corners()
	switch {
	case index <= topRight:
		return Coordinate{X: index, Y: 0}, nil
	case index <= bottomRight:
		return Coordinate{X: g.width - 1, Y: index - topRight}, nil
	case index <= bottomLeft:
		return Coordinate{X: g.width - 1 - (index - bottomRight), Y: g.height - 1}, nil
	default:
		return Coordinate{X: 0, Y: g.height - 1 - (index - bottomLeft)}, nil
	}
}

func (g *Geometry) ToIndex(c Coordinate) (int, error) {
	if c.X < 0 || c.X >= g.width || c.Y < 0 || c.Y >= g.height {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfRange, c.X, c.Y)
	}
	topRight, bottomRight, bottomLeft := g.corners()
	switch {
	case c.Y == 0:
		return c.X, nil
	case c.X == g.width-1:
		return topRight + c.Y, nil
	case c.Y == g.height-1:
		return bottomRight + (g.width - 1 - c.X), nil
	case c.X == 0:
		return bottomLeft + (g.height - 1 - c.Y), nil
	}
	return 0, fmt.Errorf("%w: (%d,%d) 在棋盘内部", ErrOutOfRange, c.X, c.Y)
}

// Side 角落格子归属于从它出发的那条边
func (g *Geometry) Side(index int) (Side, error) {
	if index < 0 || index >= g.Size() {
		return "", fmt.Errorf("%w: index=%d", ErrOutOfRange, index)
	}
	topRight, bottomRight, bottomLeft := g.corners()
	switch {
	case index < topRight:
		return SideTop, nil
	case index < bottomRight:
		return SideRight, nil
	case index < bottomLeft:
		return SideBottom, nil
	default:
		return SideLeft, nil
	}
}

func (g *Geometry) IsCorner(index int) bool {
	topRight, bottomRight, bottomLeft := g.corners()
	return index == 0 || index == topRight || index == bottomRight || index == bottomLeft
}

// Path 返回从 from 出发走 steps 步经过的格子（不含起点），越过终点后回到 0
func (g *Geometry) Path(from, steps int) ([]int, error) {
	if from < 0 || from >= g.Size() {
		return nil, fmt.Errorf("%w: index=%d", ErrOutOfRange, from)
	}
	if steps < 0 {
		return nil, fmt.Errorf("步数不能为负: %d", steps)
	}
	path := make([]int, 0, steps)
	for i := 1; i <= steps; i++ {
		path = append(path, (from+i)%g.Size())
	}
	return path, nil
}

// Contains 判断编号是否落在棋盘上
func (g *Geometry) Contains(index int) bool {
	return index >= 0 && index < g.Size()
}
