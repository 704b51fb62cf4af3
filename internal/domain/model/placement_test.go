package model_test

import (
	"strings"
	"testing"

	"github.com/sailorworks/verigrant/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalizeUsername(t *testing.T) {
	Convey("Given raw username input", t, func() {
		Convey("Then leading @ and whitespace should be stripped", func() {
			So(model.NormalizeUsername("  @Alice "), ShouldEqual, "Alice")
			So(model.NormalizeUsername("bob"), ShouldEqual, "bob")
			So(model.NormalizeUsername("@@double"), ShouldEqual, "@double")
		})

		Convey("Then keys should be case-insensitive", func() {
			So(model.UsernameKey("@Alice"), ShouldEqual, model.UsernameKey("ALICE "))
		})
	})
}

func TestNewPlacementID(t *testing.T) {
	Convey("Given placement ID assignment", t, func() {
		a := model.NewPlacementID(model.ModeManual)
		b := model.NewPlacementID(model.ModeManual)

		Convey("Then IDs should carry the mode tag", func() {
			So(strings.HasPrefix(a, "manual-"), ShouldBeTrue)
			So(strings.HasPrefix(model.NewPlacementID(model.ModeAI), "ai-"), ShouldBeTrue)
		})

		Convey("Then consecutive IDs should differ", func() {
			So(a, ShouldNotEqual, b)
		})
	})
}

func TestPositionClamped(t *testing.T) {
	Convey("Given out-of-bounds positions", t, func() {
		So(model.Position{X: -5, Y: 120}.Clamped(), ShouldResemble, model.Position{X: 0, Y: 100})
		So(model.Position{X: 50, Y: 50}.Clamped(), ShouldResemble, model.Position{X: 50, Y: 50})
	})
}

func TestModeValid(t *testing.T) {
	Convey("Given placement modes", t, func() {
		So(model.ModeManual.Valid(), ShouldBeTrue)
		So(model.ModeAI.Valid(), ShouldBeTrue)
		So(model.Mode("psychic").Valid(), ShouldBeFalse)
	})
}
