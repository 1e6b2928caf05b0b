/*
Copyright © 2021 the Pace authors.
This file is part of Pace.

Pace is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Pace is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Pace.  If not, see <http://www.gnu.org/licenses/>.
*/

package pace

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

// rankLogger conditions a logger on the communicator rank: rank 0
// logs normally, every other rank discards. The gating happens once
// here so the solver can log unconditionally.
func rankLogger(log logrus.FieldLogger, rank int) logrus.FieldLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if rank == 0 {
		return log
	}
	discard := logrus.New()
	discard.Out = ioutil.Discard
	return discard
}
